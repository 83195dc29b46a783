package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/tbxark/formstate/asyncfield"
	"github.com/tbxark/formstate/field"
	"github.com/tbxark/formstate/form"
	"github.com/tbxark/formstate/rules"
	"github.com/tbxark/formstate/store"
)

var (
	fieldEmail    = field.NewID[string]("email")
	fieldUsername = field.NewID[string]("username")
	fieldAge      = field.NewID[int]("age")
	fieldCountry  = field.NewID[string]("country")
	fieldCity     = field.NewID[string]("city")
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("signup example: %v", err)
	}
}

func run(ctx context.Context) error {
	slog.SetLogLoggerLevel(slog.LevelInfo)

	fileStore, err := store.NewFileStore(".formstate")
	if err != nil {
		return err
	}
	c := form.New(
		form.WithFormID("signup"),
		form.WithStore(fileStore),
		form.WithSubmitThrottle(500*time.Millisecond),
	)
	defer c.Close()

	registerFields(c)

	remove := c.AddListener(func(snap *form.Snapshot) {
		slog.Info("form changed", "changed", snap.ChangedFields(), "valid", snap.IsValid())
	})
	defer remove()

	// Cities load from a fake remote source whenever the country changes.
	cities := asyncfield.New[string](
		asyncfield.WithKeepPreviousData[string](),
		asyncfield.WithDebounce[string](100*time.Millisecond),
	)
	defer cities.Close()
	unbind := asyncfield.BindController(cities, c, fieldCity)
	defer unbind()
	c.AddListener(func(snap *form.Snapshot) {
		if country, ok := snap.Value(fieldCountry.Key()); ok {
			if name, _ := country.(string); name != "" && snap.IsDirty(fieldCountry.Key()) {
				cities.Load(ctx, func(ctx context.Context) (string, error) {
					return defaultCity(name)
				})
			}
		}
	})

	if err := form.Set(c, fieldEmail, "ada@example.com"); err != nil {
		return err
	}
	if err := form.Set(c, fieldUsername, "ada"); err != nil {
		return err
	}
	if err := form.Set(c, fieldAge, 36); err != nil {
		return err
	}
	if err := form.Set(c, fieldCountry, "France"); err != nil {
		return err
	}

	fmt.Println(c.FormatSummary())

	return c.Submit(ctx, form.SubmitOptions{
		OnValid: func(ctx context.Context, values map[string]any) error {
			slog.Info("submitting", "values", values)
			return nil
		},
		OnError: func(validations map[string]field.ValidationResult) {
			for key, vr := range validations {
				if !vr.IsValid {
					slog.Warn("invalid field", "field", key, "error", vr.ErrorMessage)
				}
			}
		},
	})
}

func registerFields(c *form.Controller) {
	_ = form.Register(c, field.Definition[string]{
		ID:        fieldEmail,
		Validator: rules.New[string]("Email").Required().Email().Build(),
	})
	_ = form.Register(c, field.Definition[string]{
		ID: fieldUsername,
		AsyncValidator: rules.New[string]("Username").Required().MinLength(3).
			Async(checkUsernameFree),
		Debounce: 200 * time.Millisecond,
	})
	_ = form.Register(c, field.Definition[int]{
		ID:        fieldAge,
		Validator: rules.New[int]("Age").Min(18).Build(),
	})
	_ = form.Register(c, field.Definition[string]{
		ID:        fieldCountry,
		Validator: rules.New[string]("Country").Required().Build(),
	})
	_ = form.Register(c, field.Definition[string]{
		ID:        fieldCity,
		DependsOn: []string{fieldCountry.Key()},
	})
}

func checkUsernameFree(ctx context.Context, username string) (string, error) {
	// Stand-in for a remote uniqueness check.
	if strings.EqualFold(username, "admin") {
		return "Username is already taken", nil
	}
	return "", nil
}

func defaultCity(country string) (string, error) {
	switch country {
	case "France":
		return "Paris", nil
	case "Japan":
		return "Tokyo", nil
	default:
		return "", errors.New("no city data for " + country)
	}
}
