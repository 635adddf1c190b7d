// Package catalog holds the sandbox card catalog: card versions, the listings
// for sale, and the searches over them
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alexbotov/decktutor/internal/audit"
	"github.com/alexbotov/decktutor/internal/domain"
	"github.com/alexbotov/decktutor/pkg/decktutor"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed data/default.yaml
var defaultCatalogYAML []byte

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var (
	ErrInvalidRange = errors.New("offset and limit must not be negative")
	ErrInvalidCard  = errors.New("invalid catalog entry")
)

// listingNamespace derives stable listing IDs, so reseeding keeps them
var listingNamespace = uuid.MustParse("5b0f4cc5-6f8e-4d2a-9a61-0c1f4f3b9d27")

// File is the YAML layout of a catalog seed
type File struct {
	Cards []Card `yaml:"cards"`
}

// Card groups the printings of one card
type Card struct {
	Game     decktutor.Game `yaml:"game"`
	Name     string         `yaml:"name"`
	Versions []Version      `yaml:"versions"`
}

// Version is one printing and the copies listed for sale
type Version struct {
	ID       string    `yaml:"id"`
	Set      string    `yaml:"set"`
	SetName  string    `yaml:"set_name"`
	Number   string    `yaml:"number"`
	Rarity   string    `yaml:"rarity"`
	ImageURL string    `yaml:"image_url"`
	Listings []Listing `yaml:"listings"`
}

// Listing is a lot of identical copies offered by a seller
type Listing struct {
	Seller   string                 `yaml:"seller"`
	State    decktutor.CardState    `yaml:"state"`
	Language decktutor.CardLanguage `yaml:"language"`
	Foil     bool                   `yaml:"foil"`
	Quantity int                    `yaml:"quantity"`
	Price    int64                  `yaml:"price"`
	Currency string                 `yaml:"currency"`
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// LoadFile reads a YAML catalog from path
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the catalog built into the binary
func Default() *File {
	file, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return file
}

func (f *File) validate() error {
	ids := make(map[string]bool)
	for _, card := range f.Cards {
		if !card.Game.Valid() {
			return fmt.Errorf("%w: %s: %w", ErrInvalidCard, card.Name, decktutor.ErrUnknownGame)
		}
		if card.Name == "" {
			return fmt.Errorf("%w: card without a name", ErrInvalidCard)
		}
		for _, v := range card.Versions {
			if v.ID == "" || v.Set == "" {
				return fmt.Errorf("%w: %s: version needs an id and a set", ErrInvalidCard, card.Name)
			}
			if ids[v.ID] {
				return fmt.Errorf("%w: duplicate version %s", ErrInvalidCard, v.ID)
			}
			ids[v.ID] = true
			for _, l := range v.Listings {
				if !l.State.Valid() || !l.Language.Valid() {
					return fmt.Errorf("%w: %s: bad state or language", ErrInvalidCard, v.ID)
				}
				if l.Quantity <= 0 || l.Price < 0 || l.Currency == "" {
					return fmt.Errorf("%w: %s: bad quantity, price or currency", ErrInvalidCard, v.ID)
				}
			}
		}
	}
	return nil
}

// Service provides catalog storage and search
type Service struct {
	db    *sql.DB
	audit *audit.Service
}

// New creates a new catalog service
func New(db *sql.DB, auditSvc *audit.Service) *Service {
	return &Service{db: db, audit: auditSvc}
}

// Seed replaces the stored catalog with file and returns the number of
// versions and listings written
func (s *Service) Seed(ctx context.Context, file *File) (versions, listings int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM listings"); err != nil {
		return 0, 0, fmt.Errorf("failed to clear listings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM card_versions"); err != nil {
		return 0, 0, fmt.Errorf("failed to clear card versions: %w", err)
	}

	for _, card := range file.Cards {
		for _, v := range card.Versions {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO card_versions (id, game, name, set_code, set_name, number, rarity, image_url)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, v.ID, string(card.Game), card.Name, v.Set, v.SetName, v.Number, v.Rarity, v.ImageURL)
			if err != nil {
				return 0, 0, fmt.Errorf("failed to insert version %s: %w", v.ID, err)
			}
			versions++

			for i, l := range v.Listings {
				id := uuid.NewSHA1(listingNamespace, []byte(fmt.Sprintf("%s/%d", v.ID, i)))
				_, err := tx.ExecContext(ctx, `
					INSERT INTO listings (id, version_id, seller, state, language, foil, quantity, price, currency)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				`, id.String(), v.ID, l.Seller, string(l.State), string(l.Language), l.Foil, l.Quantity, l.Price, l.Currency)
				if err != nil {
					return 0, 0, fmt.Errorf("failed to insert listing for %s: %w", v.ID, err)
				}
				listings++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit catalog: %w", err)
	}

	s.audit.Log(ctx, audit.EventCatalogSeeded, domain.SeverityInfo,
		fmt.Sprintf("Catalog seeded with %d versions and %d listings", versions, listings),
		map[string]int{"versions": versions, "listings": listings},
		audit.WithComponent("catalog"))

	return versions, listings, nil
}

// FindNames returns the distinct card names of game starting with query,
// ignoring case
func (s *Service) FindNames(ctx context.Context, game decktutor.Game, query string, limit int) ([]string, error) {
	if !game.Valid() {
		return nil, decktutor.ErrUnknownGame
	}
	limit, err := pageLimit(limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT name FROM card_versions
		WHERE game = $1 AND LOWER(name) LIKE $2
		ORDER BY name
		LIMIT $3
	`, string(game), likePrefix(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// VersionQuery selects card versions by exact name, set, or both
type VersionQuery struct {
	Game   decktutor.Game
	Name   string
	Set    string
	Offset int
	Limit  int
	Order  decktutor.Order
}

var versionColumns = map[string]string{
	"name":   "name",
	"set":    "set_code",
	"number": "number",
	"rarity": "rarity",
}

// FindVersions returns the printings matching q
func (s *Service) FindVersions(ctx context.Context, q *VersionQuery) ([]decktutor.CardVersion, error) {
	if !q.Game.Valid() {
		return nil, decktutor.ErrUnknownGame
	}
	if q.Offset < 0 {
		return nil, ErrInvalidRange
	}
	limit, err := pageLimit(q.Limit)
	if err != nil {
		return nil, err
	}
	orderBy, err := orderClause(q.Order, versionColumns, "name, set_code")
	if err != nil {
		return nil, err
	}

	query := `SELECT id, game, name, set_code, set_name, number, rarity, image_url
			  FROM card_versions WHERE game = $1`
	args := []interface{}{string(q.Game)}
	paramIdx := 2

	if q.Name != "" {
		query += fmt.Sprintf(" AND LOWER(name) = $%d", paramIdx)
		args = append(args, strings.ToLower(q.Name))
		paramIdx++
	}
	if q.Set != "" {
		query += fmt.Sprintf(" AND LOWER(set_code) = $%d", paramIdx)
		args = append(args, strings.ToLower(q.Set))
		paramIdx++
	}

	query += fmt.Sprintf(" ORDER BY %s, id LIMIT $%d OFFSET $%d", orderBy, paramIdx, paramIdx+1)
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []decktutor.CardVersion{}
	for rows.Next() {
		var v decktutor.CardVersion
		err := rows.Scan(&v.ID, &v.Game, &v.Name, &v.Set, &v.SetName, &v.Number, &v.Rarity, &v.ImageURL)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

var listingColumns = map[string]string{
	"price":    "l.price",
	"name":     "v.name",
	"set":      "v.set_code",
	"state":    "l.state",
	"language": "l.language",
	"quantity": "l.quantity",
	"seller":   "l.seller",
}

// Serp searches the listings for sale. A zero search matches everything.
func (s *Service) Serp(ctx context.Context, req *decktutor.SerpRequest) ([]decktutor.Listing, error) {
	search := req.Search
	if search == nil {
		search = &decktutor.Search{}
	}
	if search.Game != "" && !search.Game.Valid() {
		return nil, decktutor.ErrUnknownGame
	}
	if req.Offset < 0 || search.MinPrice < 0 || search.MaxPrice < 0 {
		return nil, ErrInvalidRange
	}
	limit, err := pageLimit(req.Limit)
	if err != nil {
		return nil, err
	}
	order, err := decktutor.ParseOrder(req.Order)
	if err != nil {
		return nil, err
	}
	orderBy, err := orderClause(order, listingColumns, "l.price, v.name")
	if err != nil {
		return nil, err
	}

	query := `SELECT l.id, l.seller, l.state, l.language, l.foil, l.quantity, l.price, l.currency,
				v.id, v.game, v.name, v.set_code, v.set_name, v.number, v.rarity, v.image_url
			  FROM listings l JOIN card_versions v ON v.id = l.version_id
			  WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1
	where := func(clause string, arg interface{}) {
		query += fmt.Sprintf(" AND "+clause, paramIdx)
		args = append(args, arg)
		paramIdx++
	}

	if search.Game != "" {
		where("v.game = $%d", string(search.Game))
	}
	if search.Name != "" {
		where("LOWER(v.name) LIKE $%d", likeContains(search.Name))
	}
	if search.Set != "" {
		where("LOWER(v.set_code) = $%d", strings.ToLower(search.Set))
	}
	if search.Language != "" {
		where("l.language = $%d", string(search.Language))
	}
	if search.State != "" {
		where("l.state = $%d", string(search.State))
	}
	if search.Foil != nil {
		where("l.foil = $%d", *search.Foil)
	}
	if search.MinPrice > 0 {
		where("l.price >= $%d", search.MinPrice)
	}
	if search.MaxPrice > 0 {
		where("l.price <= $%d", search.MaxPrice)
	}

	query += fmt.Sprintf(" ORDER BY %s, l.id LIMIT $%d OFFSET $%d", orderBy, paramIdx, paramIdx+1)
	args = append(args, limit, req.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []decktutor.Listing{}
	for rows.Next() {
		var l decktutor.Listing
		err := rows.Scan(&l.ID, &l.Seller, &l.State, &l.Language, &l.Foil, &l.Quantity, &l.Price, &l.Currency,
			&l.Card.ID, &l.Card.Game, &l.Card.Name, &l.Card.Set, &l.Card.SetName,
			&l.Card.Number, &l.Card.Rarity, &l.Card.ImageURL)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func pageLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, ErrInvalidRange
	case limit == 0:
		return DefaultLimit, nil
	case limit > MaxLimit:
		return MaxLimit, nil
	}
	return limit, nil
}

// orderClause maps a client ordering onto a whitelisted column
func orderClause(order decktutor.Order, columns map[string]string, fallback string) (string, error) {
	if order.Column == "" {
		return fallback, nil
	}
	column, ok := columns[strings.ToLower(order.Column)]
	if !ok {
		return "", fmt.Errorf("%w: unknown column %q", decktutor.ErrInvalidOrder, order.Column)
	}
	if order.Descending {
		return column + " DESC", nil
	}
	return column + " ASC", nil
}

var likeEscaper = strings.NewReplacer(`%`, ``, `_`, ``)

func likePrefix(s string) string {
	return strings.ToLower(likeEscaper.Replace(s)) + "%"
}

func likeContains(s string) string {
	return "%" + likePrefix(s)
}
