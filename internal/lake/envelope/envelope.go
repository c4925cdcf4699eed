// Package envelope seals a whole upload batch under a fresh data key that is
// itself wrapped by AWS KMS.
//
// Blob layout: "CLE1" | uint16 wrapped key length | wrapped key | nonce | ciphertext.
package envelope

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"golang.org/x/crypto/chacha20poly1305"
)

var magic = []byte("CLE1")

// ErrMalformed is returned by Open for blobs that are not envelopes.
var ErrMalformed = errors.New("envelope: malformed blob")

// KMSAPI is the subset of the KMS client used here.
type KMSAPI interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSSealer encrypts with keys generated under keyID.
type KMSSealer struct {
	client KMSAPI
	keyID  string
}

// NewKMSSealer constructs a sealer. keyID may be empty for a sealer used
// only to Open, since KMS resolves the key from the wrapped blob.
func NewKMSSealer(client KMSAPI, keyID string) *KMSSealer {
	return &KMSSealer{client: client, keyID: keyID}
}

// NewKMSSealerForRegion builds a sealer on a KMS client from the default AWS
// credential chain.
func NewKMSSealerForRegion(ctx context.Context, region, keyID string) (*KMSSealer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("envelope: load aws config: %w", err)
	}
	return NewKMSSealer(kms.NewFromConfig(cfg), keyID), nil
}

// Seal encrypts plaintext into a self-describing blob.
func (s *KMSSealer) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	if s.keyID == "" {
		return nil, errors.New("envelope: KMS key id is required to seal")
	}
	dk, err := s.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(s.keyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("generate data key: %w", err)
	}
	defer clear(dk.Plaintext)

	if len(dk.CiphertextBlob) > 0xFFFF {
		return nil, fmt.Errorf("envelope: wrapped key too large (%d bytes)", len(dk.CiphertextBlob))
	}
	aead, err := chacha20poly1305.NewX(dk.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(magic) + 2 + len(dk.CiphertextBlob) + len(nonce) + len(plaintext) + aead.Overhead())
	buf.Write(magic)
	buf.Write(binary.BigEndian.AppendUint16(nil, uint16(len(dk.CiphertextBlob))))
	buf.Write(dk.CiphertextBlob)
	buf.Write(nonce)
	return aead.Seal(buf.Bytes(), nonce, plaintext, magic), nil
}

// Open reverses Seal.
func (s *KMSSealer) Open(ctx context.Context, blob []byte) ([]byte, error) {
	wrapped, nonce, ciphertext, err := split(blob)
	if err != nil {
		return nil, err
	}
	out, err := s.client.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: wrapped})
	if err != nil {
		return nil, fmt.Errorf("decrypt data key: %w", err)
	}
	defer clear(out.Plaintext)

	aead, err := chacha20poly1305.NewX(out.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, magic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return plaintext, nil
}

// IsEnvelope reports whether blob starts with the envelope magic.
func IsEnvelope(blob []byte) bool {
	return bytes.HasPrefix(blob, magic)
}

func split(blob []byte) (wrapped, nonce, ciphertext []byte, err error) {
	if !IsEnvelope(blob) || len(blob) < len(magic)+2 {
		return nil, nil, nil, ErrMalformed
	}
	rest := blob[len(magic):]
	n := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) < n+chacha20poly1305.NonceSizeX {
		return nil, nil, nil, ErrMalformed
	}
	return rest[:n], rest[n : n+chacha20poly1305.NonceSizeX], rest[n+chacha20poly1305.NonceSizeX:], nil
}
