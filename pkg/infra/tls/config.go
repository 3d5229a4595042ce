package tls

import (
	"crypto/tls"
)

type ServerOptions struct {
	MinVersion       string
	MaxVersion       string
	CipherSuites     []uint16
	CurvePreferences []int
}

func BuildServerTLSConfig(store *CertStore, opts ServerOptions) *tls.Config {
	var curvePrefs []tls.CurveID
	for _, c := range opts.CurvePreferences {
		curvePrefs = append(curvePrefs, tls.CurveID(c))
	}

	minVersion := tlsVersion(opts.MinVersion, tls.VersionTLS12)
	if minVersion < tls.VersionTLS12 {
		minVersion = tls.VersionTLS12
	}

	return &tls.Config{
		GetCertificate:   store.GetCertificate,
		MinVersion:       minVersion,
		MaxVersion:       tlsVersion(opts.MaxVersion, tls.VersionTLS13),
		CipherSuites:     opts.CipherSuites,
		CurvePreferences: curvePrefs,
		NextProtos:       []string{"http/1.1"},
	}
}

func tlsVersion(version string, fallback uint16) uint16 {
	switch version {
	case "TLS12":
		return tls.VersionTLS12
	case "TLS13":
		return tls.VersionTLS13
	default:
		return fallback
	}
}
