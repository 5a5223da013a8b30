// Package remote implements the external recipe-parser collaborator: a
// client that asks a parsing service to turn a source URL into a structured
// recipe, mapped into the same (header, version) shape a user-authored
// "create new recipe" submission has.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kbenzarti/forkbook/internal/domain"
	"github.com/kbenzarti/forkbook/internal/logger"
)

// Compile-time interface check.
var _ domain.Parser = (*Client)(nil)

// ── Wire types ───────────────────────────────────────────────────

// recipeDTO is the JSON shape the parsing service returns.
type recipeDTO struct {
	Title           string          `json:"title"`
	Category        string          `json:"category"`
	PrepTimeMinutes int             `json:"prepTimeMinutes"`
	Ingredients     []ingredientDTO `json:"ingredients"`
	Directions      []directionDTO  `json:"directions"`
}

type ingredientDTO struct {
	Name string `json:"name"`
	// Quantity stays a string on the wire; the service may return "1-2"
	// or "a pinch". Unparseable quantities map to 0.
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

type directionDTO struct {
	Description    string `json:"description"`
	TimerInMinutes int    `json:"timerInMinutes"`
}

type parseRequest struct {
	URL string `json:"url"`
}

// ── Client ───────────────────────────────────────────────────────

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUnits supplies the known measure units for best-effort matching of
// the service's free-text unit strings.
func WithUnits(units []domain.MeasureUnit) Option {
	return func(c *Client) { c.units = units }
}

// Client calls the recipe parsing service. The service owns the scraping
// and AI extraction; this client only speaks its JSON contract.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *logger.Logger
	units    []domain.MeasureUnit
}

// NewClient creates a parser client for the given service endpoint.
func NewClient(endpoint, apiKey string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 60 * time.Second},
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseFromURL asks the service to parse the recipe at url. On success it
// returns a header/version pair with no ids assigned; the repository's
// create path mints them, exactly as for a hand-typed recipe. A downed or
// misbehaving service maps to domain.ErrServiceUnavailable.
func (c *Client) ParseFromURL(ctx context.Context, url string) (*domain.RecipeHeader, *domain.RecipeVersion, error) {
	body, err := json.Marshal(parseRequest{URL: url})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("parser service unreachable: %v", err)
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("parser service returned %d for %s", resp.StatusCode, url)
		return nil, nil, fmt.Errorf("%w: parser service returned %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	var dto recipeDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, nil, fmt.Errorf("%w: undecodable response: %v", domain.ErrServiceUnavailable, err)
	}

	header, version := c.toDomain(dto)
	c.log.Info("parsed %q from %s (%d ingredients, %d steps)",
		header.Title, url, len(version.Ingredients), len(version.Directions))
	return header, version, nil
}

// toDomain maps the wire DTO into domain shapes. Ingredient names become
// pending catalog refs (resolved at save time); unit strings are matched
// against the known units best-effort, defaulting to pieces.
func (c *Client) toDomain(dto recipeDTO) (*domain.RecipeHeader, *domain.RecipeVersion) {
	header := &domain.RecipeHeader{
		Title:               dto.Title,
		DefaultPrepTimeMins: dto.PrepTimeMinutes,
	}

	version := &domain.RecipeVersion{
		Name:       "Original",
		Commentary: "Imported from the web",
		CreatedAt:  time.Now().UnixMilli(),
	}
	for _, ing := range dto.Ingredients {
		version.Ingredients = append(version.Ingredients, domain.Ingredient{
			DisplayName: ing.Name,
			Standard:    domain.NewStandard(ing.Name),
			Quantity:    parseQuantity(ing.Quantity),
			Unit:        c.matchUnit(ing.Unit),
		})
	}
	for _, dir := range dto.Directions {
		step := domain.InstructionStep{Description: dir.Description}
		if dir.TimerInMinutes > 0 {
			step.Timer = &domain.TimerInfo{DurationSeconds: int64(dir.TimerInMinutes) * 60}
		}
		version.Directions = append(version.Directions, step)
	}
	return header, version
}

// parseQuantity turns the service's free-text quantity into a number.
// Ranges like "1-2" use the lower bound; anything unparseable is 0.
func parseQuantity(s string) float64 {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "-–"); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	q, err := strconv.ParseFloat(s, 64)
	if err != nil || q < 0 {
		return 0
	}
	return q
}

// matchUnit resolves a free-text unit string against the known units by
// abbreviation or name. Unknown units fall back to the piece unit if one
// is known, else a zero unit the edit screen makes the user fix.
func (c *Client) matchUnit(s string) domain.MeasureUnit {
	needle := strings.ToLower(strings.TrimSpace(s))
	var piece domain.MeasureUnit
	for _, u := range c.units {
		if strings.ToLower(u.Abbreviation) == needle || strings.ToLower(u.Name) == needle {
			return u
		}
		if u.Type == domain.MeasurementPiece && piece.ID == "" {
			piece = u
		}
	}
	return piece
}
