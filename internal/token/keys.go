package token

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultKeyPath is where key files live when no path is configured.
	DefaultKeyPath = "./data/oauth-keys"

	privateKeyFile = "private.pem"
	publicKeyFile  = "public.pem"
	rsaKeyBits     = 2048
)

// KeyOptions selects where the signing key pair comes from.
type KeyOptions struct {
	// PrivateKeyPEM, when non-empty, wins over the files under Path.
	PrivateKeyPEM string
	Path          string
}

// KeyManager owns the process-wide RSA signing key pair. It is created
// once at startup, initialized once and then only read.
type KeyManager struct {
	opts KeyOptions
	now  func() time.Time

	once    sync.Once
	initErr error

	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	keyID      string
	source     string
}

// NewKeyManager returns a manager that resolves its keys on Init.
func NewKeyManager(opts KeyOptions) *KeyManager {
	if opts.Path == "" {
		opts.Path = DefaultKeyPath
	}
	return &KeyManager{
		opts: opts,
		now:  time.Now,
	}
}

// Init resolves the key pair: the configured PEM first, then the key files,
// otherwise a freshly generated pair written to the key path. Only the
// first call does any work; concurrent callers wait for it and later calls
// return its result.
func (m *KeyManager) Init() error {
	m.once.Do(func() {
		m.initErr = m.load()
		if m.initErr == nil {
			log.WithFields(log.Fields{
				"kid":    m.keyID,
				"source": m.source,
			}).Info("OAuth signing key loaded")
		}
	})
	return m.initErr
}

func (m *KeyManager) load() error {
	var (
		private *rsa.PrivateKey
		public  *rsa.PublicKey
		err     error
	)

	switch {
	case strings.TrimSpace(m.opts.PrivateKeyPEM) != "":
		private, err = parsePrivateKeyPEM([]byte(m.opts.PrivateKeyPEM))
		if err != nil {
			return fmt.Errorf("OAUTH_RSA_PRIVATE_KEY: %w", err)
		}
		public, err = derivePublicKey(private)
		if err != nil {
			return err
		}
		m.source = "environment"
	default:
		private, public, err = m.loadOrGenerateFiles()
		if err != nil {
			return err
		}
	}

	kid, err := thumbprint(public)
	if err != nil {
		return err
	}

	m.privateKey = private
	m.publicKey = public
	m.keyID = kid
	return nil
}

// derivePublicKey rebuilds the public key from the private key's JWK with
// every private member (d, p, q, dp, dq, qi) stripped.
func derivePublicKey(private *rsa.PrivateKey) (*rsa.PublicKey, error) {
	jwk := jose.JSONWebKey{Key: private, Algorithm: string(jose.RS256), Use: "sig"}
	public := jwk.Public()
	key, ok := public.Key.(*rsa.PublicKey)
	if !ok || !public.Valid() {
		return nil, fmt.Errorf("%w: cannot derive public key", ErrKeyMaterial)
	}
	return key, nil
}

func (m *KeyManager) loadOrGenerateFiles() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privatePath := filepath.Join(m.opts.Path, privateKeyFile)
	publicPath := filepath.Join(m.opts.Path, publicKeyFile)

	privatePEM, err := os.ReadFile(privatePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if _, statErr := os.Stat(publicPath); statErr == nil {
			return nil, nil, fmt.Errorf("%s exists without %s", publicPath, privatePath)
		}
		return m.generateFiles(privatePath, publicPath)
	case err != nil:
		return nil, nil, fmt.Errorf("failed to read %s: %w", privatePath, err)
	}

	private, err := parsePrivateKeyPEM(privatePEM)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", privatePath, err)
	}

	publicPEM, err := os.ReadFile(publicPath)
	if errors.Is(err, fs.ErrNotExist) {
		public, derr := derivePublicKey(private)
		if derr != nil {
			return nil, nil, derr
		}
		if werr := writePublicKey(publicPath, public); werr != nil {
			return nil, nil, werr
		}
		m.source = "file"
		return private, public, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", publicPath, err)
	}

	public, err := parsePublicKeyPEM(publicPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", publicPath, err)
	}
	if !private.PublicKey.Equal(public) {
		return nil, nil, fmt.Errorf("%w: %s", ErrKeyPairMismatch, m.opts.Path)
	}

	m.source = "file"
	return private, public, nil
}

func (m *KeyManager) generateFiles(privatePath, publicPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	private, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	if err := os.MkdirAll(m.opts.Path, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	privatePEM, err := encodePrivateKeyPEM(private)
	if err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		return nil, nil, fmt.Errorf("failed to write %s: %w", privatePath, err)
	}
	if err := writePublicKey(publicPath, &private.PublicKey); err != nil {
		return nil, nil, err
	}

	m.source = "generated"
	log.WithField("path", m.opts.Path).Warn("Generated new OAuth signing key pair")
	return private, &private.PublicKey, nil
}

func writePublicKey(path string, public *rsa.PublicKey) error {
	publicPEM, err := encodePublicKeyPEM(public)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, publicPEM, 0o644); err != nil { //nolint:gosec // public key
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// thumbprint is the RFC 7638 SHA-256 thumbprint, used as the stable kid.
func thumbprint(public *rsa.PublicKey) (string, error) {
	tp, err := (&jose.JSONWebKey{Key: public}).Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(tp), nil
}

// KeyID returns the kid published in the JWKS and stamped on every token.
func (m *KeyManager) KeyID() string {
	return m.keyID
}

// PublicJWKS returns the verification key set. It only ever carries the
// public modulus and exponent.
func (m *KeyManager) PublicJWKS() jose.JSONWebKeySet {
	if m.publicKey == nil {
		return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}
	}
	return jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       m.publicKey,
			KeyID:     m.keyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}},
	}
}
