// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mtls provides mTLS and TLS server config support.
package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

var (
	ErrMissingCertOrKey       = errors.New("root ca set without certificate or key")
	ErrNoValidRootCertificate = errors.New("no valid root certificate")
	ErrMissingCertificate     = errors.New("missing certificate")
	ErrMissingKey             = errors.New("missing key")
)

// NewServerConfig returns a TLS configuration for use with an mTLS or TLS connection.
// If a root CA PEM block is provided the configuration will be set up for mTLS,
// otherwise if it is empty the config will be for TLS connections. If all
// parameters are empty, a nil config will be returned.
func NewServerConfig(rootPEM, certPEMBlock, keyPEMBlock []byte) (*tls.Config, error) {
	if len(rootPEM) == 0 && len(certPEMBlock) == 0 && len(keyPEMBlock) == 0 {
		return nil, nil
	}
	tlsConfig := tls.Config{MinVersion: tls.VersionTLS12}
	if len(rootPEM) != 0 {
		if len(certPEMBlock) == 0 || len(keyPEMBlock) == 0 {
			return nil, ErrMissingCertOrKey
		}
		caPool := x509.NewCertPool()
		ok := caPool.AppendCertsFromPEM(rootPEM)
		if !ok {
			return nil, ErrNoValidRootCertificate
		}
		tlsConfig.ClientCAs = caPool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	if len(certPEMBlock) == 0 {
		return nil, ErrMissingCertificate
	}
	if len(keyPEMBlock) == 0 {
		return nil, ErrMissingKey
	}
	cert, err := tls.X509KeyPair(certPEMBlock, keyPEMBlock)
	if err != nil {
		return nil, err
	}
	tlsConfig.Certificates = []tls.Certificate{cert}
	return &tlsConfig, nil
}

// LoadServerConfig is NewServerConfig with the PEM blocks read from the
// named files. Empty paths are treated as empty blocks.
func LoadServerConfig(rootPath, certPath, keyPath string) (*tls.Config, error) {
	var blocks [3][]byte
	for i, path := range []string{rootPath, certPath, keyPath} {
		if path == "" {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read pem file: %w", err)
		}
		blocks[i] = b
	}
	return NewServerConfig(blocks[0], blocks[1], blocks[2])
}
