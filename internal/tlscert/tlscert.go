// Package tlscert supplies the certificate for the HTTPS listener.
package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"sync"
	"time"
)

// Mode selects where the certificate comes from.
type Mode string

const (
	ModeFile       Mode = "file"
	ModeSelfSigned Mode = "self-signed"
)

// MinVersion is the lowest TLS version the server negotiates.
const MinVersion = tls.VersionTLS12

// Config holds certificate settings.
type Config struct {
	Mode     Mode
	CertFile string
	KeyFile  string
	// Hosts are the names a self-signed certificate is issued for.
	Hosts []string
}

// Source is a loaded certificate source.
type Source struct {
	config      *tls.Config
	description string
}

// TLSConfig returns the server TLS configuration.
func (s *Source) TLSConfig() *tls.Config {
	return s.config
}

// Description names the certificate source for logs.
func (s *Source) Description() string {
	return s.description
}

// Load prepares a certificate source for cfg.Mode.
func Load(cfg Config, logger *slog.Logger) (*Source, error) {
	switch cfg.Mode {
	case ModeFile:
		return loadFile(cfg, logger)
	case ModeSelfSigned:
		return loadSelfSigned(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported TLS mode %q (valid modes: file, self-signed)", cfg.Mode)
	}
}

// fileReloader serves the key pair on disk and picks up a replaced
// certificate on the next handshake after its modification time changes.
type fileReloader struct {
	certFile, keyFile string
	logger            *slog.Logger

	mu      sync.Mutex
	modTime time.Time
	cert    *tls.Certificate
}

func loadFile(cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("file mode requires both a certificate and a key file")
	}
	info, err := os.Stat(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("invalid key file: %w", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("key file %s must not be accessible by group or others (mode %o)", cfg.KeyFile, info.Mode().Perm())
	}

	r := &fileReloader{certFile: cfg.CertFile, keyFile: cfg.KeyFile, logger: logger}
	if _, err := r.current(); err != nil {
		return nil, err
	}

	return &Source{
		config: &tls.Config{
			MinVersion: MinVersion,
			GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
				return r.current()
			},
		},
		description: fmt.Sprintf("file (cert=%s)", cfg.CertFile),
	}, nil
}

func (r *fileReloader) current() (*tls.Certificate, error) {
	info, err := os.Stat(r.certFile)
	if err != nil {
		return nil, fmt.Errorf("invalid certificate file: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cert != nil && info.ModTime().Equal(r.modTime) {
		return r.cert, nil
	}

	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		if r.cert != nil {
			r.logger.Error("failed to reload certificate, keeping previous one",
				slog.String("cert_file", r.certFile),
				slog.String("error", err.Error()))
			return r.cert, nil
		}
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	if r.cert != nil {
		r.logger.Info("certificate reloaded", slog.String("cert_file", r.certFile))
	}
	r.cert = &cert
	r.modTime = info.ModTime()
	return r.cert, nil
}

func loadSelfSigned(cfg Config, logger *slog.Logger) (*Source, error) {
	hosts := cfg.Hosts
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1", "::1"}
	}
	cert, err := selfSigned(hosts, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	logger.Warn("serving an in-memory self-signed certificate - not suitable for production",
		slog.Any("hosts", hosts))

	return &Source{
		config: &tls.Config{
			MinVersion:   MinVersion,
			Certificates: []tls.Certificate{cert},
		},
		description: "self-signed (in memory)",
	}, nil
}

func selfSigned(hosts []string, now time.Time) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"accounts-api (self-signed)"}, CommonName: hosts[0]},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(30 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, nil
}
