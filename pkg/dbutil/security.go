// Copyright 2018 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package dbutil

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/pingcap/errors"
)

// ToTLSConfig generates tls's config. It returns nil when no CA is given.
func ToTLSConfig(caPath, certPath, keyPath string) (*tls.Config, error) {
	if len(caPath) == 0 {
		return nil, nil
	}

	var certificates []tls.Certificate
	if len(certPath) != 0 && len(keyPath) != 0 {
		// Load the client certificates from disk
		certificate, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, errors.Annotate(err, "could not load client key pair")
		}
		certificates = append(certificates, certificate)
	}

	ca, err := os.ReadFile(caPath)
	if err != nil {
		return nil, errors.Annotate(err, "could not read ca certificate")
	}

	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(ca) {
		return nil, errors.Errorf("failed to append ca certs from %s", caPath)
	}

	return &tls.Config{
		Certificates: certificates,
		RootCAs:      certPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
