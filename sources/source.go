// Package sources describes extraction targets as data: where a source
// lives, how to wait for it, and the ordered strategies for each field.
package sources

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/go-playground/validator/v10"
	"github.com/use-agent/harvest/extract"
)

// Kind selects the record shape a source produces.
type Kind string

const (
	KindListing    Kind = "listing"
	KindLatestPost Kind = "latest_post"
)

// WaitKind is the readiness condition after navigating to a listing.
type WaitKind string

const (
	WaitNetworkIdle WaitKind = "network_idle"
	WaitSelector    WaitKind = "selector"
	WaitNone        WaitKind = "none"
)

// WaitSpec is a navigation wait condition.
type WaitSpec struct {
	Kind     WaitKind      `yaml:"kind" json:"kind" validate:"omitempty,oneof=network_idle selector none"`
	Selector string        `yaml:"selector" json:"selector,omitempty" validate:"omitempty,css"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout,omitempty" validate:"min=0"`
}

// Mode is how a strategy locates its value.
type Mode string

const (
	ModeText        Mode = "text"
	ModeAttr        Mode = "attr"
	ModeClosestLink Mode = "closest_link"
	ModeBestLink    Mode = "best_link"
)

// StrategySpec is one entry of a field's strategy chain.
type StrategySpec struct {
	Mode     Mode                `yaml:"mode" json:"mode" validate:"required,oneof=text attr closest_link best_link"`
	Selector string              `yaml:"selector" json:"selector,omitempty" validate:"omitempty,css"`
	Attr     string              `yaml:"attr" json:"attr,omitempty"`
	MinLen   int                 `yaml:"minLen" json:"minLen,omitempty" validate:"min=0"`
	MaxLen   int                 `yaml:"maxLen" json:"maxLen,omitempty" validate:"min=0"`
	Filter   *extract.LinkFilter `yaml:"filter" json:"filter,omitempty"`
}

func (sp StrategySpec) String() string {
	switch sp.Mode {
	case ModeAttr:
		return fmt.Sprintf("attr(%s@%s)", sp.Selector, sp.Attr)
	case ModeBestLink:
		return "best_link"
	default:
		return fmt.Sprintf("%s(%s)", sp.Mode, sp.Selector)
	}
}

// Fields holds the strategy chains of every field a source may resolve.
type Fields struct {
	PageTitle []StrategySpec `yaml:"pageTitle" json:"pageTitle,omitempty" validate:"dive"`
	ItemName  []StrategySpec `yaml:"itemName" json:"itemName,omitempty" validate:"dive"`
	ItemPrice []StrategySpec `yaml:"itemPrice" json:"itemPrice,omitempty" validate:"dive"`
	Title     []StrategySpec `yaml:"title" json:"title,omitempty" validate:"dive"`
	Author    []StrategySpec `yaml:"author" json:"author,omitempty" validate:"dive"`
	PostURL   []StrategySpec `yaml:"postUrl" json:"postUrl,omitempty" validate:"dive"`
}

// StabilizeSpec bounds the scroll loop run on a detail page. Zero values
// inherit the process defaults.
type StabilizeSpec struct {
	StepDelay            time.Duration `yaml:"stepDelay" json:"stepDelay,omitempty" validate:"min=0"`
	MaxIterations        int           `yaml:"maxIterations" json:"maxIterations,omitempty" validate:"min=0"`
	RequiredStableStreak int           `yaml:"requiredStableStreak" json:"requiredStableStreak,omitempty" validate:"min=0"`
	TailCycles           int           `yaml:"tailCycles" json:"tailCycles,omitempty" validate:"min=0"`
}

// DetailSpec describes the per-post detail page that carries the engagement
// count. Every step is best-effort.
type DetailSpec struct {
	NavigationTimeout time.Duration `yaml:"navigationTimeout" json:"navigationTimeout,omitempty" validate:"min=0"`
	SettleDelay       time.Duration `yaml:"settleDelay" json:"settleDelay,omitempty" validate:"min=0"`
	WaitSelector      string        `yaml:"waitSelector" json:"waitSelector,omitempty" validate:"omitempty,css"`
	WaitTimeout       time.Duration `yaml:"waitTimeout" json:"waitTimeout,omitempty" validate:"min=0"`
	ReadyDelay        time.Duration `yaml:"readyDelay" json:"readyDelay,omitempty" validate:"min=0"`
	Stabilize         StabilizeSpec `yaml:"stabilize" json:"stabilize"`
	MarkerFragments   []string      `yaml:"markerFragments" json:"markerFragments,omitempty"`
	MarkerTimeout     time.Duration `yaml:"markerTimeout" json:"markerTimeout,omitempty" validate:"min=0"`
	MarkerSettle      time.Duration `yaml:"markerSettle" json:"markerSettle,omitempty" validate:"min=0"`
	CountSingular     string        `yaml:"countSingular" json:"countSingular" validate:"required"`
	CountPlural       string        `yaml:"countPlural" json:"countPlural" validate:"required"`
}

// Source is the complete description of one extraction target.
type Source struct {
	ID           string        `yaml:"id" json:"id" validate:"required,max=64"`
	Label        string        `yaml:"label" json:"label" validate:"required"`
	Kind         Kind          `yaml:"kind" json:"kind" validate:"required,oneof=listing latest_post"`
	BaseURL      string        `yaml:"baseUrl" json:"baseUrl" validate:"required,http_url"`
	ItemSelector string        `yaml:"itemSelector" json:"itemSelector" validate:"required,css"`
	ListingWait  WaitSpec      `yaml:"listingWait" json:"listingWait"`
	SettleDelay  time.Duration `yaml:"settleDelay" json:"settleDelay,omitempty" validate:"min=0"`
	Fields       Fields        `yaml:"fields" json:"fields"`
	NextSelector string        `yaml:"nextSelector" json:"nextSelector,omitempty" validate:"omitempty,css"`
	Detail       *DetailSpec   `yaml:"detail" json:"detail,omitempty"`

	// RepeatDistance is the largest simhash distance at which a new page's
	// items count as a repeat of the previous page. 0 only matches exact
	// repeats.
	RepeatDistance int `yaml:"repeatDistance" json:"repeatDistance,omitempty" validate:"min=0,max=64"`

	chains *Chains
}

// Chains are the compiled strategy chains of a source.
type Chains struct {
	PageTitle extract.Chain
	ItemName  extract.Chain
	ItemPrice extract.Chain
	Title     extract.Chain
	Author    extract.Chain
	PostURL   extract.Chain
}

// Paginated reports whether the source declares a next-page control.
func (s *Source) Paginated() bool { return s.NextSelector != "" }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func sourceValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("css", func(fl validator.FieldLevel) bool {
			_, err := cascadia.Compile(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Validate checks the source and compiles its strategy chains.
func (s *Source) Validate() error {
	if err := sourceValidator().Struct(s); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, e := range ve {
				msgs = append(msgs, fmt.Sprintf("%s %s", e.Namespace(), formatValidationError(e)))
			}
			return fmt.Errorf("source %q: %s", s.ID, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("source %q: %w", s.ID, err)
	}

	switch s.Kind {
	case KindListing:
		if len(s.Fields.ItemName) == 0 {
			return fmt.Errorf("source %q: listing sources need an itemName chain", s.ID)
		}
	case KindLatestPost:
		if len(s.Fields.Title) == 0 || len(s.Fields.Author) == 0 {
			return fmt.Errorf("source %q: latest_post sources need title and author chains", s.ID)
		}
	}
	if s.ListingWait.Kind == WaitSelector && s.ListingWait.Selector == "" {
		return fmt.Errorf("source %q: selector wait needs a selector", s.ID)
	}

	chains, err := s.compile()
	if err != nil {
		return fmt.Errorf("source %q: %w", s.ID, err)
	}
	s.chains = chains
	return nil
}

// Chains returns the compiled strategy chains, validating the source first
// if needed.
func (s *Source) Chains() (Chains, error) {
	if s.chains == nil {
		if err := s.Validate(); err != nil {
			return Chains{}, err
		}
	}
	return *s.chains, nil
}

func (s *Source) compile() (*Chains, error) {
	var c Chains
	for _, f := range []struct {
		name  string
		specs []StrategySpec
		out   *extract.Chain
	}{
		{"pageTitle", s.Fields.PageTitle, &c.PageTitle},
		{"itemName", s.Fields.ItemName, &c.ItemName},
		{"itemPrice", s.Fields.ItemPrice, &c.ItemPrice},
		{"title", s.Fields.Title, &c.Title},
		{"author", s.Fields.Author, &c.Author},
		{"postUrl", s.Fields.PostURL, &c.PostURL},
	} {
		chain, err := compileChain(f.specs)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.name, err)
		}
		*f.out = chain
	}
	return &c, nil
}

func compileChain(specs []StrategySpec) (extract.Chain, error) {
	chain := make(extract.Chain, 0, len(specs))
	for i, sp := range specs {
		st, err := sp.strategy()
		if err != nil {
			return nil, fmt.Errorf("strategy %d: %w", i, err)
		}
		chain = append(chain, st)
	}
	return chain, nil
}

func (sp StrategySpec) strategy() (extract.FieldStrategy, error) {
	if sp.Mode != ModeBestLink && sp.Selector == "" {
		return extract.FieldStrategy{}, fmt.Errorf("%s needs a selector", sp.Mode)
	}

	var loc extract.Locator
	switch sp.Mode {
	case ModeText:
		loc = extract.Text(sp.Selector)
	case ModeAttr:
		if sp.Attr == "" {
			return extract.FieldStrategy{}, errors.New("attr needs an attribute name")
		}
		loc = extract.Attr(sp.Selector, sp.Attr)
	case ModeClosestLink:
		loc = extract.ClosestLink(sp.Selector)
	case ModeBestLink:
		f := extract.DefaultLinkFilter()
		if sp.Filter != nil {
			f = *sp.Filter
		}
		var err error
		if loc, err = extract.BestLink(f); err != nil {
			return extract.FieldStrategy{}, err
		}
	default:
		return extract.FieldStrategy{}, fmt.Errorf("unknown mode %q", sp.Mode)
	}

	var checks []extract.Validator
	if sp.MinLen > 0 {
		checks = append(checks, extract.MinLen(sp.MinLen))
	}
	if sp.MaxLen > 0 {
		checks = append(checks, extract.MaxLen(sp.MaxLen))
	}
	return extract.FieldStrategy{
		Name:     sp.String(),
		Locate:   loc,
		Validate: extract.All(checks...),
	}, nil
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", e.Param())
	case "css":
		return fmt.Sprintf("is not a valid CSS selector: %q", e.Value())
	case "http_url":
		return "must be an http(s) URL"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
