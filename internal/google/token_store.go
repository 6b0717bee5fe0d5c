package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no OAuth token has been stored yet.
var ErrNoToken = errors.New("no OAuth token stored; run `inboxtriage auth` first")

// Token store kinds accepted by NewTokenStore.
const (
	StoreFile    = "file"
	StoreKeyring = "keyring"
)

// TokenStore persists the user's OAuth token.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	Delete() error
	// Location describes where the token lives, for diagnostics.
	Location() string
}

// NewTokenStore returns the store of the given kind rooted at credentialsDir.
func NewTokenStore(kind, credentialsDir string) (TokenStore, error) {
	switch kind {
	case StoreFile, "":
		return NewFileTokenStore(filepath.Join(credentialsDir, "token.json")), nil
	case StoreKeyring:
		return OpenKeyringTokenStore(credentialsDir)
	}
	return nil, fmt.Errorf("unknown token store %q", kind)
}

// FileTokenStore keeps the token as JSON in a 0600 file.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Location() string {
	return s.path
}

func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	return decodeToken(data)
}

func (s *FileTokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

const (
	keyringService = "inboxtriage"
	keyringItemKey = "gmail-oauth-token"
)

// KeyringTokenStore keeps the token in the OS credential store.
type KeyringTokenStore struct {
	ring keyring.Keyring
}

// OpenKeyringTokenStore opens the platform keyring. On systems without one
// the encrypted file backend under fileDir is used.
func OpenKeyringTokenStore(fileDir string) (*KeyringTokenStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(fileDir, "keyring"),
		FilePasswordFunc:         keyring.FixedStringPrompt("inboxtriage-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewKeyringTokenStore(ring), nil
}

// NewKeyringTokenStore wraps an already opened keyring.
func NewKeyringTokenStore(ring keyring.Keyring) *KeyringTokenStore {
	return &KeyringTokenStore{ring: ring}
}

func (s *KeyringTokenStore) Location() string {
	return "keyring:" + keyringService + "/" + keyringItemKey
}

func (s *KeyringTokenStore) Load() (*oauth2.Token, error) {
	item, err := s.ring.Get(keyringItemKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("failed to read token from keyring: %w", err)
	}
	return decodeToken(item.Data)
}

func (s *KeyringTokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	err = s.ring.Set(keyring.Item{
		Key:         keyringItemKey,
		Data:        data,
		Label:       "inboxtriage Gmail token",
		Description: "OAuth token used by inboxtriage to label Gmail messages",
	})
	if err != nil {
		return fmt.Errorf("failed to write token to keyring: %w", err)
	}
	return nil
}

func (s *KeyringTokenStore) Delete() error {
	if err := s.ring.Remove(keyringItemKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove token from keyring: %w", err)
	}
	return nil
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("stored token is empty")
	}
	return tok, nil
}
