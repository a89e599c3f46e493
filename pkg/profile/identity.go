package profile

import (
	"crypto/x509"
	"fmt"

	gop12 "software.sslmate.com/src/go-pkcs12"
)

// CertificateIdentity is the signing identity named by a certificate
type CertificateIdentity struct {
	CommonName string
	TeamID     string
	NotAfter   string
}

// LoadCertificateIdentity decodes a PKCS#12 bundle and returns the
// identity its certificate names. codesign accepts the common name as
// the -s argument once the certificate is in the keychain.
func LoadCertificateIdentity(p12Data []byte, password string) (*CertificateIdentity, error) {
	_, cert, _, err := gop12.DecodeChain(p12Data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode P12: %w", err)
	}
	return identityFromCertificate(cert)
}

func identityFromCertificate(cert *x509.Certificate) (*CertificateIdentity, error) {
	if cert.Subject.CommonName == "" {
		return nil, fmt.Errorf("certificate has no common name")
	}
	return &CertificateIdentity{
		CommonName: cert.Subject.CommonName,
		TeamID:     extractTeamID(cert),
		NotAfter:   cert.NotAfter.Format("2006-01-02"),
	}, nil
}

// extractTeamID extracts the team ID from the certificate's OU field
func extractTeamID(cert *x509.Certificate) string {
	if len(cert.Subject.OrganizationalUnit) > 0 {
		return cert.Subject.OrganizationalUnit[0]
	}
	return ""
}
