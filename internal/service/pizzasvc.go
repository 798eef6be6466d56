package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"PizzaLeaderserver/internal/blob"
	"PizzaLeaderserver/internal/domain"
)

const (
	MaxPhotoBytes  = 8 << 20
	maxIngredients = 20
	maxNoteLen     = 500
	minYear        = 2000
	maxYear        = 2100
)

var photoExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

type PizzasStore interface {
	CreatePizza(ctx context.Context, p domain.Pizza) (domain.Pizza, error)
	// DeletePizza removes the row only when it belongs to userID and returns
	// the deleted row.
	DeletePizza(ctx context.Context, id int64, userID string) (domain.Pizza, error)
	ListPizzas(ctx context.Context, userID string, from, to time.Time) ([]domain.Pizza, error)
	CountPizzas(ctx context.Context, userIDs []string, from, to time.Time, ingredient string) (map[string]int, error)
	SetYearlyCounter(ctx context.Context, c domain.YearlyCounter) (domain.YearlyCounter, error)
	YearlyCounters(ctx context.Context, userIDs []string, year int) (map[string]int, error)
}

// ContentGate decides whether viewer may see owner's pizzas.
type ContentGate interface {
	Require(ctx context.Context, viewerID string, owner domain.Profile) error
}

type PizzaService struct {
	Pizzas   PizzasStore
	Profiles ProfilesStore
	Gate     ContentGate
	Blobs    blob.Store
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *PizzaService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *PizzaService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

type Photo struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

type LogPizzaParams struct {
	EatenAt     time.Time
	Ingredients []string
	Note        string
	Photo       *Photo
}

func (s *PizzaService) LogPizza(ctx context.Context, userID string, p LogPizzaParams) (domain.Pizza, error) {
	now := s.now()
	if p.EatenAt.IsZero() {
		p.EatenAt = now
	}
	p.Note = strings.TrimSpace(p.Note)
	ingredients := domain.NormalizeIngredients(p.Ingredients)

	fields := map[string]string{}
	if p.EatenAt.After(now.Add(24 * time.Hour)) {
		fields["eaten_at"] = "must not be in the future"
	}
	if y := p.EatenAt.UTC().Year(); y < minYear || y > maxYear {
		fields["eaten_at"] = "out of range"
	}
	if len(ingredients) > maxIngredients {
		fields["ingredients"] = fmt.Sprintf("at most %d tags", maxIngredients)
	}
	for _, ing := range ingredients {
		if utf8.RuneCountInString(ing) > 40 {
			fields["ingredients"] = "tags must be 40 characters or less"
			break
		}
	}
	if utf8.RuneCountInString(p.Note) > maxNoteLen {
		fields["note"] = fmt.Sprintf("must be %d characters or less", maxNoteLen)
	}
	var ext string
	if p.Photo != nil {
		var ok bool
		ext, ok = photoExtensions[p.Photo.ContentType]
		if !ok {
			fields["photo"] = "must be a jpeg, png or webp image"
		}
		if p.Photo.Size > MaxPhotoBytes {
			fields["photo"] = "must be 8 MiB or less"
		}
		if s.Blobs == nil {
			fields["photo"] = "uploads are disabled"
		}
	}
	if len(fields) > 0 {
		return domain.Pizza{}, domain.NewValidationError(fields)
	}

	row := domain.Pizza{
		UserID:      userID,
		EatenAt:     p.EatenAt.UTC(),
		Ingredients: ingredients,
		Note:        p.Note,
	}
	if p.Photo != nil {
		row.PhotoKey = fmt.Sprintf("pizzas/%s/%s.%s", userID, uuid.NewString(), ext)
		url, err := s.Blobs.Put(ctx, row.PhotoKey, p.Photo.ContentType, io.LimitReader(p.Photo.Body, MaxPhotoBytes))
		if err != nil {
			return domain.Pizza{}, err
		}
		row.PhotoURL = url
	}

	created, err := s.Pizzas.CreatePizza(ctx, row)
	if err != nil {
		if row.PhotoKey != "" {
			if derr := s.Blobs.Delete(context.WithoutCancel(ctx), row.PhotoKey); derr != nil {
				s.logger().Error("orphaned pizza photo", "key", row.PhotoKey, "err", derr)
			}
		}
		return domain.Pizza{}, err
	}

	s.logger().Info("pizza logged", "pizza_id", created.ID, "user_id", userID, "photo", created.PhotoKey != "")
	return created, nil
}

func (s *PizzaService) DeletePizza(ctx context.Context, userID string, pizzaID int64) error {
	deleted, err := s.Pizzas.DeletePizza(ctx, pizzaID, userID)
	if err != nil {
		return err
	}
	if deleted.PhotoKey != "" && s.Blobs != nil {
		if err := s.Blobs.Delete(ctx, deleted.PhotoKey); err != nil {
			s.logger().Error("delete pizza photo", "key", deleted.PhotoKey, "err", err)
		}
	}
	s.logger().Info("pizza deleted", "pizza_id", pizzaID, "user_id", userID)
	return nil
}

// visibleOwner resolves the owner and applies the content gate.
func (s *PizzaService) visibleOwner(ctx context.Context, viewerID, ownerUsername string) (domain.Profile, error) {
	owner, err := s.Profiles.GetProfileByUsername(ctx, strings.TrimSpace(ownerUsername))
	if err != nil {
		return domain.Profile{}, err
	}
	if s.Gate != nil {
		if err := s.Gate.Require(ctx, viewerID, owner); err != nil {
			return domain.Profile{}, err
		}
	}
	return owner, nil
}

func (s *PizzaService) ListPizzas(ctx context.Context, viewerID, ownerUsername string, year int) ([]domain.Pizza, error) {
	year, err := s.resolveYear(year)
	if err != nil {
		return nil, err
	}
	owner, err := s.visibleOwner(ctx, viewerID, ownerUsername)
	if err != nil {
		return nil, err
	}
	from, to := domain.Period{Year: year}.Bounds()
	pizzas, err := s.Pizzas.ListPizzas(ctx, owner.ID, from, to)
	if err != nil {
		return nil, err
	}
	if pizzas == nil {
		pizzas = []domain.Pizza{}
	}
	return pizzas, nil
}

func (s *PizzaService) IngredientStats(ctx context.Context, viewerID, ownerUsername string, year int) ([]domain.IngredientStat, error) {
	pizzas, err := s.ListPizzas(ctx, viewerID, ownerUsername, year)
	if err != nil {
		return nil, err
	}
	return domain.TallyIngredients(pizzas), nil
}

func (s *PizzaService) SetYearlyCounter(ctx context.Context, userID string, year, start int) (domain.YearlyCounter, error) {
	fields := map[string]string{}
	if year < minYear || year > maxYear {
		fields["year"] = fmt.Sprintf("must be between %d and %d", minYear, maxYear)
	}
	if start < 0 {
		fields["start_count"] = "must not be negative"
	}
	if len(fields) > 0 {
		return domain.YearlyCounter{}, domain.NewValidationError(fields)
	}
	c, err := s.Pizzas.SetYearlyCounter(ctx, domain.YearlyCounter{UserID: userID, Year: year, StartCount: start})
	if err != nil {
		return domain.YearlyCounter{}, err
	}
	s.logger().Info("yearly counter set", "user_id", userID, "year", year, "start_count", start)
	return c, nil
}

// resolveYear treats 0 as the current year.
func (s *PizzaService) resolveYear(year int) (int, error) {
	if year == 0 {
		return s.now().UTC().Year(), nil
	}
	if year < minYear || year > maxYear {
		return 0, domain.NewValidationError(map[string]string{"year": fmt.Sprintf("must be between %d and %d", minYear, maxYear)})
	}
	return year, nil
}
