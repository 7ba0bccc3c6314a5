package menu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/alextreichler/qrmenu/internal/images"
	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/alextreichler/qrmenu/internal/store"
	"github.com/google/uuid"
)

// ImageHost stores uploaded menu images and returns a public URL for them.
type ImageHost interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
	Destroy(ctx context.Context, publicID string) error
}

// Fields holds menu item attributes supplied by a request. A nil field was
// not supplied.
type Fields struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *string
	IsAvailable *bool
}

type Image struct {
	Filename string
	Body     io.Reader
}

type Service struct {
	Repo   store.MenuRepository
	Images ImageHost // optional

	Now   func() time.Time
	NewID func() string
}

func NewService(repo store.MenuRepository, host ImageHost) *Service {
	return &Service{
		Repo:   repo,
		Images: host,
		Now:    func() time.Time { return time.Now().UTC() },
		NewID:  uuid.NewString,
	}
}

// List returns all items ordered by category then name. A non-empty
// category restricts the result to that category (case-insensitive).
func (s *Service) List(ctx context.Context, category string) ([]models.MenuItem, error) {
	items, err := s.Repo.ListMenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	if category == "" {
		return items, nil
	}
	filtered := make([]models.MenuItem, 0, len(items))
	for _, it := range items {
		if strings.EqualFold(it.Category, category) {
			filtered = append(filtered, it)
		}
	}
	return filtered, nil
}

// Categories returns the distinct categories in use, sorted.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	items, err := s.Repo.ListMenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	seen := make(map[string]bool)
	cats := []string{}
	for _, it := range items {
		if !seen[it.Category] {
			seen[it.Category] = true
			cats = append(cats, it.Category)
		}
	}
	sort.Strings(cats)
	return cats, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.MenuItem, error) {
	return s.Repo.GetMenuItem(ctx, id)
}

func (s *Service) Create(ctx context.Context, f Fields, img *Image) (*models.MenuItem, error) {
	if missing(f.Name) || missing(f.Description) || missing(f.Category) || f.Price == nil {
		return nil, models.Invalid("Please provide all required fields")
	}
	if err := validatePrice(*f.Price); err != nil {
		return nil, err
	}

	now := s.Now()
	item := &models.MenuItem{
		ID:          s.NewID(),
		Name:        strings.TrimSpace(*f.Name),
		Description: strings.TrimSpace(*f.Description),
		Price:       *f.Price,
		Category:    strings.TrimSpace(*f.Category),
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if f.IsAvailable != nil {
		item.IsAvailable = *f.IsAvailable
	}
	if img != nil {
		item.ImageURL = s.upload(ctx, img)
	}

	if err := s.Repo.CreateMenuItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create menu item: %w", err)
	}
	slog.Info("Menu item created", "id", item.ID, "name", item.Name)
	return item, nil
}

// Update applies the supplied fields to item id. A new image replaces the
// current one only if the upload succeeds.
func (s *Service) Update(ctx context.Context, id string, f Fields, img *Image) (*models.MenuItem, error) {
	item, err := s.Repo.GetMenuItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if f.Name != nil {
		if missing(f.Name) {
			return nil, models.Invalid("Name cannot be empty")
		}
		item.Name = strings.TrimSpace(*f.Name)
	}
	if f.Description != nil {
		if missing(f.Description) {
			return nil, models.Invalid("Description cannot be empty")
		}
		item.Description = strings.TrimSpace(*f.Description)
	}
	if f.Category != nil {
		if missing(f.Category) {
			return nil, models.Invalid("Category cannot be empty")
		}
		item.Category = strings.TrimSpace(*f.Category)
	}
	if f.Price != nil {
		if err := validatePrice(*f.Price); err != nil {
			return nil, err
		}
		item.Price = *f.Price
	}
	if f.IsAvailable != nil {
		item.IsAvailable = *f.IsAvailable
	}

	var oldImage string
	if img != nil {
		if url := s.upload(ctx, img); url != "" {
			oldImage = item.ImageURL
			item.ImageURL = url
		}
	}

	item.UpdatedAt = s.Now()
	if err := s.Repo.UpdateMenuItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update menu item %s: %w", id, err)
	}
	if oldImage != "" {
		s.destroy(ctx, oldImage)
	}
	return item, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	item, err := s.Repo.GetMenuItem(ctx, id)
	if err != nil {
		return err
	}
	if item.ImageURL != "" {
		s.destroy(ctx, item.ImageURL)
	}
	if err := s.Repo.DeleteMenuItem(ctx, id); err != nil {
		return fmt.Errorf("delete menu item %s: %w", id, err)
	}
	slog.Info("Menu item deleted", "id", id)
	return nil
}

// upload returns "" when no host is configured or the upload fails.
func (s *Service) upload(ctx context.Context, img *Image) string {
	if s.Images == nil {
		return ""
	}
	url, err := s.Images.Upload(ctx, img.Filename, img.Body)
	if err != nil {
		slog.Warn("Image upload failed", "file", img.Filename, "error", err)
		return ""
	}
	return url
}

func (s *Service) destroy(ctx context.Context, imageURL string) {
	if s.Images == nil {
		return
	}
	id := images.PublicID(imageURL)
	if id == "" {
		return
	}
	if err := s.Images.Destroy(ctx, id); err != nil {
		slog.Warn("Image removal failed", "image", imageURL, "error", err)
	}
}

func missing(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func validatePrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return models.Invalid("Price must be a non-negative number")
	}
	return nil
}
