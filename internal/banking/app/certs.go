package app

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// newBankHTTPClient builds the mTLS transport every bank call rides on.
// The bank authenticates us by the transport certificate, not by a
// client secret, so a working keypair is a hard startup requirement.
func newBankHTTPClient(cfg Config) (*http.Client, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TransportCertFile, cfg.TransportKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load transport keypair: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("CA bundle %s carries no usable certificates", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}, nil
}

// loadSigningKey reads the PS256 signing key PEM for the request signer.
func loadSigningKey(cfg Config) ([]byte, error) {
	pem, err := os.ReadFile(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	return pem, nil
}
