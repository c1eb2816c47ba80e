package mockbackend

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// Seed is the initial data of the mock backend.
type Seed struct {
	// AlwaysLinked treats every identity as linked, like the original Flask mock.
	AlwaysLinked bool              `yaml:"always_linked"`
	SystemUser   SystemUser        `yaml:"system_user"`
	Participant  SeedParticipant   `yaml:"participant"`
	Categories   []models.Category `yaml:"categories"`
	Products     []models.Product  `yaml:"products"`
}

// SystemUser is the bot account allowed to call link-telegram. Empty credentials accept anyone.
type SystemUser struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// SeedParticipant is the template for participants created by linking.
type SeedParticipant struct {
	ID          string  `yaml:"id"`
	PhoneNumber string  `yaml:"phone_number"`
	Balance     float64 `yaml:"balance"`
}

// DefaultSeed mirrors the original development fixtures.
func DefaultSeed() *Seed {
	home := &models.Category{GUID: "1", Name: "Для дома"}
	electronics := &models.Category{GUID: "2", Name: "Электроника"}
	lifestyle := &models.Category{GUID: "3", Name: "Образ жизни"}

	return &Seed{
		Participant: SeedParticipant{
			ID:          "b3e94e12-1eac-45fa-9df2-77081c23a90f",
			PhoneNumber: "+79991234567",
			Balance:     5000,
		},
		Categories: []models.Category{*home, *electronics, *lifestyle},
		Products: []models.Product{
			{GUID: "1", Name: "Кофеварка автоматическая", Stock: "Приготовление кофе с таймером", ImageURL: "https://picsum.photos/200/200?random=1", Price: 2500, IsAvailable: true, Category: home},
			{GUID: "2", Name: "Bluetooth колонка", Stock: "Водонепроницаемая, 10W", ImageURL: "https://picsum.photos/200/200?random=2", Price: 3200, IsAvailable: true, Category: electronics},
			{GUID: "3", Name: "Фитнес-браслет", Stock: "Мониторинг сна и активности", ImageURL: "https://picsum.photos/200/200?random=3", Price: 2800, IsAvailable: false, Category: electronics},
			{GUID: "4", Name: "Подарочная карта в магазин", Stock: "Номинал 1000 рублей", ImageURL: "https://picsum.photos/200/200?random=4", Price: 1000, IsAvailable: true, Category: lifestyle},
		},
	}
}

// LoadSeed reads a seed YAML file. An empty path returns DefaultSeed.
func LoadSeed(path string) (*Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates seed YAML.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks that guids are unique and products reference known categories.
func (s *Seed) Validate() error {
	var errs []error

	categories := make(map[string]bool, len(s.Categories))
	for i, c := range s.Categories {
		switch {
		case c.GUID == "":
			errs = append(errs, fmt.Errorf("categories[%d]: guid is required", i))
		case categories[c.GUID]:
			errs = append(errs, fmt.Errorf("categories[%d]: duplicate guid %q", i, c.GUID))
		}
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("categories[%d]: name is required", i))
		}
		categories[c.GUID] = true
	}

	products := make(map[string]bool, len(s.Products))
	for i, p := range s.Products {
		switch {
		case p.GUID == "":
			errs = append(errs, fmt.Errorf("products[%d]: guid is required", i))
		case products[p.GUID]:
			errs = append(errs, fmt.Errorf("products[%d]: duplicate guid %q", i, p.GUID))
		}
		products[p.GUID] = true

		if p.Name == "" {
			errs = append(errs, fmt.Errorf("products[%d]: name is required", i))
		}
		if p.Price < 0 {
			errs = append(errs, fmt.Errorf("products[%d]: price must not be negative", i))
		}
		if p.Category != nil && !categories[p.Category.GUID] {
			errs = append(errs, fmt.Errorf("products[%d]: unknown category %q", i, p.Category.GUID))
		}
	}

	if s.Participant.Balance < 0 {
		errs = append(errs, errors.New("participant: balance must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid seed: %w", errors.Join(errs...))
	}
	return nil
}
