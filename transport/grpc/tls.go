package grpc

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"google.golang.org/grpc/credentials"
)

// loadTLSCredentials loads TLS credentials for server or client use.
func loadTLSCredentials(certFile, keyFile, caFile string, isServer bool) (credentials.TransportCredentials, error) {
	var certPool *x509.CertPool
	if caFile != "" {
		certPool = x509.NewCertPool()
		caBytes, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		if !certPool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("failed to add CA certificate to pool")
		}
	}

	var certificate tls.Certificate
	var err error
	if certFile != "" && keyFile != "" {
		certificate, err = tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate key pair: %w", err)
		}
	}

	var config *tls.Config
	if isServer {
		config = &tls.Config{
			Certificates: []tls.Certificate{certificate},
			ClientAuth:   tls.RequireAndVerifyClientCert,
			ClientCAs:    certPool,
		}
		// Without a CA pool there is nothing to verify client certs against.
		if certPool == nil {
			config.ClientAuth = tls.NoClientCert
		}
	} else {
		config = &tls.Config{
			Certificates: []tls.Certificate{certificate},
			RootCAs:      certPool,
		}
	}

	return credentials.NewTLS(config), nil
}

// ServerTLSCredentials returns TLS credentials for a server.
func ServerTLSCredentials(certFile, keyFile, caFile string) (credentials.TransportCredentials, error) {
	return loadTLSCredentials(certFile, keyFile, caFile, true)
}

// ClientTLSCredentials returns TLS credentials for a client channel.
func ClientTLSCredentials(certFile, keyFile, caFile string) (credentials.TransportCredentials, error) {
	return loadTLSCredentials(certFile, keyFile, caFile, false)
}
