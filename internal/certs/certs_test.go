package certs

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}

func TestStore_Certificate(t *testing.T) {
	tests := []struct {
		setup func(t *testing.T, s *Store)
		check func(t *testing.T, s *Store, cert *x509.Certificate)
		name  string
	}{
		{
			name: "generates when missing",
			check: func(t *testing.T, s *Store, cert *x509.Certificate) {
				t.Helper()
				assert.Equal(t, "tagger", cert.Subject.Organization[0])
				assert.Contains(t, cert.DNSNames, "localhost")
				assert.NoError(t, cert.VerifyHostname("127.0.0.1"))
				assert.True(t, cert.NotAfter.After(time.Now().Add(Validity-time.Hour)))

				certFile, keyFile := s.Paths()
				info, err := os.Stat(keyFile)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
				assert.FileExists(t, certFile)
			},
		},
		{
			name: "reuses a valid certificate",
			setup: func(t *testing.T, s *Store) {
				t.Helper()
				_, err := s.Certificate()
				require.NoError(t, err)
			},
			check: func(t *testing.T, s *Store, cert *x509.Certificate) {
				t.Helper()
				again, err := s.Certificate()
				require.NoError(t, err)
				assert.Equal(t, cert.SerialNumber, leaf(t, again).SerialNumber)
			},
		},
		{
			name: "replaces unreadable files",
			setup: func(t *testing.T, s *Store) {
				t.Helper()
				certFile, keyFile := s.Paths()
				require.NoError(t, os.MkdirAll(filepath.Dir(certFile), 0700))
				require.NoError(t, os.WriteFile(certFile, []byte("not a certificate"), 0600))
				require.NoError(t, os.WriteFile(keyFile, []byte("not a key"), 0600))
			},
			check: func(t *testing.T, _ *Store, cert *x509.Certificate) {
				t.Helper()
				assert.NoError(t, cert.VerifyHostname("localhost"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(filepath.Join(t.TempDir(), "certs"))
			if tt.setup != nil {
				tt.setup(t, s)
			}

			cert, err := s.Certificate()
			require.NoError(t, err)
			tt.check(t, s, leaf(t, cert))
		})
	}
}

func TestStore_NewHostRegenerates(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir).Certificate()
	require.NoError(t, err)

	second, err := NewStore(dir, "tagger.lan").Certificate()
	require.NoError(t, err)

	assert.NotEqual(t, leaf(t, first).SerialNumber, leaf(t, second).SerialNumber)
	assert.Contains(t, leaf(t, second).DNSNames, "tagger.lan")
}

func TestStore_Verify(t *testing.T) {
	s := NewStore(t.TempDir())
	cert, err := s.Certificate()
	require.NoError(t, err)

	now := time.Now()
	tests := []struct {
		at      time.Time
		name    string
		wantErr bool
	}{
		{name: "fresh", at: now},
		{name: "expiring", at: now.Add(Validity - 24*time.Hour), wantErr: true},
		{name: "before validity", at: now.Add(-48 * time.Hour), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.verify(cert, tt.at)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, s.verify(tls.Certificate{}, now))
}

func TestStore_TLSConfig(t *testing.T) {
	cfg, err := NewStore(t.TempDir()).TLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}
