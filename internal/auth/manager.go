// Package auth logs a browser session in to X.com with an account from the
// credential pool.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xscrape/internal/config"
	"github.com/ibeckermayer/xscrape/internal/dom"
	"github.com/ibeckermayer/xscrape/internal/pace"
)

// LoginURL is the entry point of the login flow
const LoginURL = "https://x.com/i/flow/login"

// Login flow controls
const (
	SelEmailField        = `input[autocomplete="username"]`
	SelNextButton        = `//span[contains(text(),'Next')]`
	SelUsernameChallenge = `input[data-testid="ocfEnterTextTextInput"]`
	SelUsernameNext      = `button[data-testid="ocfEnterTextNextButton"]`
	SelPasswordField     = `input[name="password"]`
	SelLoginButton       = `button[data-testid="LoginForm_Login_Button"]`
)

// controlWait bounds how long each login control may take to render.
const controlWait = 15 * time.Second

// Manager drives the X.com login flow
type Manager struct {
	pool   *Pool
	pacer  pace.Pacer
	pacing config.PacingConfig
	log    zerolog.Logger
}

// NewManager creates a new auth manager
func NewManager(pool *Pool, pacer pace.Pacer, pacing config.PacingConfig, log zerolog.Logger) *Manager {
	return &Manager{pool: pool, pacer: pacer, pacing: pacing, log: log}
}

// Authenticate runs one login sequence on page with a random credential.
// A control that cannot be found ends the sequence with ok=false and a
// "<control> not found" message; there is no internal retry. err is reserved
// for cancellation and faults that are not about locating elements.
func (m *Manager) Authenticate(ctx context.Context, page dom.Page) (ok bool, msg string, err error) {
	cred := m.pool.Pick()
	m.log.Info().Str("username", cred.Username).Msg("logging in")

	if err := page.Navigate(ctx, LoginURL); err != nil {
		return false, "", fmt.Errorf("failed to navigate to login page: %w", err)
	}
	if err := pace.Sleep(ctx, m.pacing.LoginSettle); err != nil {
		return false, "", err
	}

	steps := []struct {
		name     string
		selector string
		text     string
		optional bool
	}{
		{name: "Email field", selector: SelEmailField, text: cred.Email},
		{name: "Next button", selector: SelNextButton},
		// X only asks for the handle when it finds the login unusual.
		{name: "Username field", selector: SelUsernameChallenge, text: cred.Username, optional: true},
		{name: "Password field", selector: SelPasswordField, text: cred.Password},
		{name: "Log in button", selector: SelLoginButton},
	}

	for _, step := range steps {
		if err := m.pacer.Pause(ctx, m.pacing.MinPause, m.pacing.MaxPause); err != nil {
			return false, "", err
		}

		var el dom.Element
		if step.optional {
			el, err = page.Find(ctx, step.selector)
		} else {
			el, err = page.WaitFor(ctx, step.selector, controlWait)
		}
		switch {
		case err == nil:
		case step.optional && dom.KindOf(err) == dom.MissingElement:
			continue
		case dom.IsLocatorFault(err):
			m.log.Warn().Str("control", step.name).Msg("login control not found")
			return false, step.name + " not found", nil
		default:
			return false, "", err
		}

		if err := m.interact(ctx, el, step.text); err != nil {
			if dom.IsLocatorFault(err) {
				return false, step.name + " not found", nil
			}
			return false, "", err
		}

		if step.optional {
			if err := m.confirmChallenge(ctx, page); err != nil {
				if dom.IsLocatorFault(err) {
					return false, "Username next button not found", nil
				}
				return false, "", err
			}
		}
	}

	m.log.Info().Str("username", cred.Username).Msg("login submitted")
	return true, "Twitter login successful", nil
}

// interact clicks el, then types text into it one rune at a time.
func (m *Manager) interact(ctx context.Context, el dom.Element, text string) error {
	return dom.TypeSlowly(ctx, el, text, func(ctx context.Context) error {
		return m.pacer.Pause(ctx, m.pacing.KeystrokeDelay, m.pacing.KeystrokeDelay)
	})
}

func (m *Manager) confirmChallenge(ctx context.Context, page dom.Page) error {
	next, err := page.WaitFor(ctx, SelUsernameNext, controlWait)
	if err != nil {
		return err
	}
	if err := next.Click(ctx); err != nil {
		return err
	}
	return nil
}
