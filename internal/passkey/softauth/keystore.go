package softauth

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/AngiE300512/just-ease/internal/passkey"
)

type storedCredential struct {
	ID         string `json:"id"`
	RPID       string `json:"rp_id"`
	UserHandle string `json:"user_handle,omitempty"`
	Key        []byte `json:"key"` // PKCS#8 DER
	Counter    uint32 `json:"counter"`
}

type keystore struct {
	Version     int                `json:"version"`
	Credentials []storedCredential `json:"credentials"`
}

// Save writes all credentials, including private keys, as JSON.
func (a *Authenticator) Save(w io.Writer) error {
	a.mu.Lock()
	ks := keystore{Version: 1, Credentials: make([]storedCredential, 0, len(a.order))}
	for _, id := range a.order {
		c := a.creds[id]
		der, err := x509.MarshalPKCS8PrivateKey(c.key)
		if err != nil {
			a.mu.Unlock()
			return err
		}
		ks.Credentials = append(ks.Credentials, storedCredential{
			ID:         id,
			RPID:       c.rpID,
			UserHandle: passkey.EncodeID(c.userHandle),
			Key:        der,
			Counter:    c.counter,
		})
	}
	a.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ks)
}

// Load replaces the authenticator's credentials with the ones read from r.
func (a *Authenticator) Load(r io.Reader) error {
	var ks keystore
	if err := json.NewDecoder(r).Decode(&ks); err != nil {
		return err
	}
	if ks.Version != 1 {
		return fmt.Errorf("softauth: unsupported keystore version %d", ks.Version)
	}

	creds := make(map[string]*credential, len(ks.Credentials))
	order := make([]string, 0, len(ks.Credentials))
	for _, sc := range ks.Credentials {
		id, err := passkey.DecodeID(sc.ID)
		if err != nil || len(id) == 0 {
			return fmt.Errorf("softauth: bad credential id %q", sc.ID)
		}
		k, err := x509.ParsePKCS8PrivateKey(sc.Key)
		if err != nil {
			return err
		}
		key, ok := k.(*ecdsa.PrivateKey)
		if !ok {
			return errors.New("softauth: credential key is not ECDSA")
		}
		uh, err := passkey.DecodeID(sc.UserHandle)
		if err != nil {
			return err
		}
		creds[sc.ID] = &credential{id: id, rpID: sc.RPID, userHandle: uh, key: key, counter: sc.Counter}
		order = append(order, sc.ID)
	}

	a.mu.Lock()
	a.creds, a.order = creds, order
	a.mu.Unlock()
	return nil
}
