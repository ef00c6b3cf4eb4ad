package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/AngiE300512/just-ease/internal/passkey/softauth"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Subject     string    `json:"subject,omitempty"`
	Label       string    `json:"label,omitempty"`
}

// token kinds
const (
	beneficiaryToken = "token.json"
	caseworkerToken  = "ngo.json"
)

var errLoginRequired = errors.New("no valid token (login required)")

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "just-ease")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "just-ease")
}

func tokenPath(kind string) string { return filepath.Join(cfgDir(), kind) }

func keystorePath() string { return filepath.Join(cfgDir(), "passkeys.json") }

// writePrivate replaces path atomically with owner-only permissions.
func writePrivate(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func saveToken(kind string, tf tokenFile) error {
	return writePrivate(tokenPath(kind), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tf)
	})
}

func loadToken(kind string) (tokenFile, error) {
	b, err := os.ReadFile(tokenPath(kind))
	if errors.Is(err, fs.ErrNotExist) {
		return tokenFile{}, errLoginRequired
	}
	if err != nil {
		return tokenFile{}, err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return tokenFile{}, fmt.Errorf("%s: %w", kind, err)
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return tokenFile{}, errLoginRequired
	}
	return tf, nil
}

func dropToken(kind string) error {
	err := os.Remove(tokenPath(kind))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ---- software authenticator ----

// loadAuthenticator restores the software platform authenticator. A missing
// keystore yields an empty authenticator.
func loadAuthenticator(opts ...softauth.Option) (*softauth.Authenticator, error) {
	a := softauth.New(opts...)
	f, err := os.Open(keystorePath())
	if errors.Is(err, fs.ErrNotExist) {
		return a, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := a.Load(f); err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	return a, nil
}

// saveAuthenticator persists keys and signature counters.
func saveAuthenticator(a *softauth.Authenticator) error {
	return writePrivate(keystorePath(), a.Save)
}
