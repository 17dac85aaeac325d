package store

import (
	"context"

	"github.com/example/slot-scheduler/internal/crypto"
	"github.com/example/slot-scheduler/internal/db"
)

// Credentials keeps the single portal account the sniper logs in with. The
// password is sealed with AES-GCM before it touches the database.
type Credentials struct {
	db   *db.DB
	aead *crypto.AEAD
}

func NewCredentials(d *db.DB, aead *crypto.AEAD) *Credentials {
	return &Credentials{db: d, aead: aead}
}

func (r *Credentials) Set(ctx context.Context, username, password string) error {
	enc, err := r.aead.EncryptToString(password)
	if err != nil {
		return err
	}
	return r.db.Exec(ctx, `
INSERT INTO portal_credentials (id, username, password_enc, updated_at)
VALUES (1, $1, $2, now())
ON CONFLICT (id) DO UPDATE SET username=EXCLUDED.username, password_enc=EXCLUDED.password_enc, updated_at=now()`,
		username, enc)
}

func (r *Credentials) Get(ctx context.Context) (username, password string, err error) {
	var enc string
	err = r.db.QueryRow(ctx, `SELECT username, password_enc FROM portal_credentials WHERE id=1`).Scan(&username, &enc)
	if err != nil {
		return "", "", db.WrapNotFound(err)
	}
	password, err = r.aead.DecryptString(enc)
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}
