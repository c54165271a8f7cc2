package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLConfig returns the driver configuration for the database section.
// Times are always parsed into time.Time in UTC.
func (d *DatabaseConfig) MySQLConfig() (*mysql.Config, error) {
	var cfg *mysql.Config
	if d.ConnectionString != "" {
		parsed, err := mysql.ParseDSN(d.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("database.dsn is invalid: %w", err)
		}
		cfg = parsed
	} else {
		cfg = mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		cfg.DBName = d.Database
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	switch d.TLS.Mode {
	case "", "off":
	case "skip-verify":
		cfg.TLSConfig = "skip-verify"
	case "verify-ca", "verify-full":
		tlsCfg, err := d.TLS.build()
		if err != nil {
			return nil, err
		}
		cfg.TLS = tlsCfg
	default:
		return nil, fmt.Errorf("unsupported database.tls.mode %q", d.TLS.Mode)
	}
	return cfg, nil
}

// DSN renders the driver configuration as a connection string.
func (d *DatabaseConfig) DSN() (string, error) {
	cfg, err := d.MySQLConfig()
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

func (t DatabaseTLSConfig) build() (*tls.Config, error) {
	if t.CAFile == "" {
		return nil, errors.New("database.tls.ca_file is required for verify-ca and verify-full")
	}
	pem, err := os.ReadFile(t.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file %q: %w", t.CAFile, err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse CA certificate from %q", t.CAFile)
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: roots, ServerName: t.ServerName}
	if t.Mode == "verify-ca" {
		// Chain is checked against the CA but the hostname is not.
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyChain(rawCerts, roots)
		}
	}
	return cfg, nil
}

func verifyChain(rawCerts [][]byte, roots *x509.CertPool) error {
	if len(rawCerts) == 0 {
		return errors.New("server presented no certificates")
	}
	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return err
		}
		certs = append(certs, cert)
	}
	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}
	_, err := certs[0].Verify(x509.VerifyOptions{Roots: roots, Intermediates: intermediates})
	return err
}
