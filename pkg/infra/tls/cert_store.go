package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync/atomic"
)

var ErrNoCertificate = errors.New("no server certificate loaded")

// CertStore serves the edge certificate from an atomic pointer so a renewed
// key pair can be swapped in while connections are being accepted.
type CertStore struct {
	certFile string
	keyFile  string
	current  atomic.Pointer[tls.Certificate]
}

func NewCertStore(certFile, keyFile string) (*CertStore, error) {
	s := &CertStore{certFile: certFile, keyFile: keyFile}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload reads the key pair from disk. On failure the previous certificate
// stays in service.
func (s *CertStore) Reload() error {
	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		return fmt.Errorf("load X509 key pair: %w", err)
	}
	s.current.Store(&cert)
	return nil
}

func (s *CertStore) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cert := s.current.Load()
	if cert == nil {
		return nil, ErrNoCertificate
	}
	return cert, nil
}

func (s *CertStore) Certificate() *tls.Certificate {
	return s.current.Load()
}
