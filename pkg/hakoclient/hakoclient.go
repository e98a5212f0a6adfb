// Package hakoclient implements the client-side upload and download
// pipelines described in spec sections C5/C6: derive a key from a
// passphrase and random salt, stream-encrypt the body over the wire
// protocol in internal/transport, and reverse that on download. The
// server never sees a passphrase or plaintext.
package hakoclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/skystar-p/hako/internal/blockio"
	"github.com/skystar-p/hako/internal/cryptoframe"
	"github.com/skystar-p/hako/internal/transport"
)

// ErrDecryption is returned when AEAD authentication fails while
// downloading, mirroring webapp/src/upload.rs's UploadError::Aead /
// download.rs's decrypt-failure path.
var ErrDecryption = errors.New("hakoclient: decryption failed")

// ErrTransport wraps a non-2xx response or network failure talking to the
// server, mirroring UploadError::Remote.
type ErrTransport struct {
	StatusCode int
	Err        error
}

func (e *ErrTransport) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hakoclient: transport error: %v", e.Err)
	}
	return fmt.Sprintf("hakoclient: server responded %d", e.StatusCode)
}

func (e *ErrTransport) Unwrap() error { return e.Err }

// Progress reports upload/download progress after each block. UploadFile
// passes the ciphertext bytes sent so far and the size the caller declared;
// DownloadFile passes the plaintext bytes written so far and the ciphertext
// size reported by the server's metadata. Text uploads and downloads report
// no progress.
type Progress func(sent, total int64)

// Uploader encrypts and uploads files or text to a Hako server.
type Uploader struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewUploader constructs an Uploader targeting baseURL, e.g.
// "https://hako.example.com".
func NewUploader(baseURL string) *Uploader {
	return &Uploader{BaseURL: baseURL, HTTPClient: http.DefaultClient}
}

// UploadResult is returned on a successful upload.
type UploadResult struct {
	ID         int64
	Passphrase []byte
}

// UploadFile encrypts filename and the contents of r, uploading them in
// blockio.BlockSize chunks. It generates a random passphrase and salt and
// returns the passphrase the caller must embed in the share link.
func (u *Uploader) UploadFile(ctx context.Context, filename string, r io.Reader, size int64, progress Progress) (*UploadResult, error) {
	passphrase := make([]byte, 32)
	if _, err := rand.Read(passphrase); err != nil {
		return nil, fmt.Errorf("hakoclient: generate passphrase: %w", err)
	}

	salt := make([]byte, cryptoframe.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("hakoclient: generate salt: %w", err)
	}

	key, err := cryptoframe.DeriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	streamNoncePrefix := make([]byte, cryptoframe.StreamNonceSize)
	if _, err := rand.Read(streamNoncePrefix); err != nil {
		return nil, fmt.Errorf("hakoclient: generate stream nonce: %w", err)
	}

	filenameNonce := make([]byte, cryptoframe.OneShotNonceSize)
	if _, err := rand.Read(filenameNonce); err != nil {
		return nil, fmt.Errorf("hakoclient: generate filename nonce: %w", err)
	}
	encryptedFilename, err := cryptoframe.SealOnce(key, filenameNonce, []byte(filename))
	if err != nil {
		return nil, err
	}

	id, err := u.prepareUpload(ctx, transport.PrepareUploadFields{
		Salt:          salt,
		Nonce:         streamNoncePrefix,
		FilenameNonce: filenameNonce,
		Filename:      encryptedFilename,
		IsText:        false,
	})
	if err != nil {
		return nil, err
	}

	streamEnc, err := cryptoframe.NewStreamEncryptor(key, streamNoncePrefix)
	if err != nil {
		return nil, err
	}

	enc := blockio.NewEncoder(r, streamEnc)
	var seq int64
	var sent int64
	for {
		block, last, err := enc.NextBlock()
		if err != nil {
			return nil, fmt.Errorf("hakoclient: read source: %w", err)
		}
		seq++
		if err := u.upload(ctx, id, seq, block, last); err != nil {
			return nil, err
		}
		sent += int64(len(block))
		if progress != nil {
			progress(sent, size)
		}
		if last {
			break
		}
	}

	return &UploadResult{ID: id, Passphrase: passphrase}, nil
}

// UploadText encrypts and uploads a single text payload as one non-streamed
// AEAD block, per spec's text mode (one-shot XChaCha20-Poly1305, no block
// framing).
func (u *Uploader) UploadText(ctx context.Context, text string) (*UploadResult, error) {
	passphrase := make([]byte, 32)
	if _, err := rand.Read(passphrase); err != nil {
		return nil, fmt.Errorf("hakoclient: generate passphrase: %w", err)
	}

	salt := make([]byte, cryptoframe.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("hakoclient: generate salt: %w", err)
	}

	key, err := cryptoframe.DeriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, cryptoframe.OneShotNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("hakoclient: generate nonce: %w", err)
	}

	ciphertext, err := cryptoframe.SealOnce(key, nonce, []byte(text))
	if err != nil {
		return nil, err
	}

	id, err := u.prepareUpload(ctx, transport.PrepareUploadFields{
		Salt:   salt,
		Nonce:  nonce,
		IsText: true,
	})
	if err != nil {
		return nil, err
	}

	if err := u.upload(ctx, id, 1, ciphertext, true); err != nil {
		return nil, err
	}

	return &UploadResult{ID: id, Passphrase: passphrase}, nil
}

func (u *Uploader) prepareUpload(ctx context.Context, f transport.PrepareUploadFields) (int64, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := writeField(mw, transport.FieldSalt, f.Salt); err != nil {
		return 0, err
	}
	if err := writeField(mw, transport.FieldNonce, f.Nonce); err != nil {
		return 0, err
	}
	if f.IsText {
		if err := writeField(mw, transport.FieldIsText, transport.EncodeBool(true)); err != nil {
			return 0, err
		}
	} else {
		if err := writeField(mw, transport.FieldFilenameNonce, f.FilenameNonce); err != nil {
			return 0, err
		}
		if err := writeField(mw, transport.FieldFilename, f.Filename); err != nil {
			return 0, err
		}
		if err := writeField(mw, transport.FieldIsText, transport.EncodeBool(false)); err != nil {
			return 0, err
		}
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/api/prepare_upload", &body)
	if err != nil {
		return 0, &ErrTransport{Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client().Do(req)
	if err != nil {
		return 0, &ErrTransport{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &ErrTransport{StatusCode: resp.StatusCode}
	}

	var parsed transport.PrepareUploadResponse
	if err := decodeJSON(resp.Body, &parsed); err != nil {
		return 0, &ErrTransport{Err: err}
	}
	return parsed.ID, nil
}

func (u *Uploader) upload(ctx context.Context, id, seq int64, content []byte, isLast bool) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := writeField(mw, transport.FieldID, transport.EncodeInt64(id)); err != nil {
		return err
	}
	if err := writeField(mw, transport.FieldSeq, transport.EncodeInt64(seq)); err != nil {
		return err
	}
	if err := writeField(mw, transport.FieldIsLast, transport.EncodeBool(isLast)); err != nil {
		return err
	}
	if err := writeField(mw, transport.FieldContent, content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/api/upload", &body)
	if err != nil {
		return &ErrTransport{Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client().Do(req)
	if err != nil {
		return &ErrTransport{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ErrTransport{StatusCode: resp.StatusCode}
	}
	return nil
}

func (u *Uploader) client() *http.Client {
	if u.HTTPClient != nil {
		return u.HTTPClient
	}
	return http.DefaultClient
}

func writeField(mw *multipart.Writer, name string, value []byte) error {
	w, err := mw.CreateFormField(name)
	if err != nil {
		return err
	}
	_, err = w.Write(value)
	return err
}

func decodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

func decodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("hakoclient: decode base64 field: %w", err)
	}
	return b, nil
}

// Downloader fetches metadata and ciphertext from a Hako server and
// decrypts it with the passphrase embedded in the share link.
type Downloader struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewDownloader constructs a Downloader targeting baseURL.
func NewDownloader(baseURL string) *Downloader {
	return &Downloader{BaseURL: baseURL, HTTPClient: http.DefaultClient}
}

// Metadata is the decoded, still-encrypted metadata for a shared object.
type Metadata struct {
	EncryptedFilename []byte
	Salt              []byte
	Nonce             []byte
	FilenameNonce     []byte
	IsText            bool
	Size              int64
}

func (d *Downloader) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d *Downloader) fetchMetadata(ctx context.Context, id int64) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/api/metadata?id="+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, &ErrTransport{Err: err}
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return nil, &ErrTransport{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ErrTransport{StatusCode: resp.StatusCode}
	}

	var parsed transport.MetadataResponse
	if err := decodeJSON(resp.Body, &parsed); err != nil {
		return nil, &ErrTransport{Err: err}
	}

	meta := &Metadata{IsText: parsed.IsText, Size: parsed.Size}
	if meta.Salt, err = decodeBase64(parsed.Salt); err != nil {
		return nil, err
	}
	if meta.Nonce, err = decodeBase64(parsed.Nonce); err != nil {
		return nil, err
	}
	if parsed.FilenameNonce != "" {
		if meta.FilenameNonce, err = decodeBase64(parsed.FilenameNonce); err != nil {
			return nil, err
		}
	}
	if parsed.Filename != "" {
		if meta.EncryptedFilename, err = decodeBase64(parsed.Filename); err != nil {
			return nil, err
		}
	}
	return meta, nil
}

// DownloadFile fetches, decrypts and streams a file-mode object's body to
// w, returning its decrypted filename.
func (d *Downloader) DownloadFile(ctx context.Context, id int64, passphrase []byte, w io.Writer, progress Progress) (filename string, err error) {
	meta, err := d.fetchMetadata(ctx, id)
	if err != nil {
		return "", err
	}
	if meta.IsText {
		return "", errors.New("hakoclient: object is text mode, use DownloadText")
	}

	key, err := cryptoframe.DeriveKey(passphrase, meta.Salt)
	if err != nil {
		return "", err
	}

	nameBytes, err := cryptoframe.OpenOnce(key, meta.FilenameNonce, meta.EncryptedFilename)
	if err != nil {
		return "", ErrDecryption
	}

	resp, err := d.openBody(ctx, id)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	streamDec, err := cryptoframe.NewStreamDecryptor(key, meta.Nonce)
	if err != nil {
		return "", err
	}

	dec := blockio.NewDecoder(resp.Body, streamDec)
	var received int64
	for {
		plaintext, last, err := dec.NextBlock()
		if errors.Is(err, cryptoframe.ErrDecrypt) {
			return "", ErrDecryption
		}
		if err != nil {
			return "", fmt.Errorf("hakoclient: read body: %w", err)
		}
		if _, err := w.Write(plaintext); err != nil {
			return "", fmt.Errorf("hakoclient: write destination: %w", err)
		}
		received += int64(len(plaintext))
		if progress != nil {
			progress(received, meta.Size)
		}
		if last {
			break
		}
	}

	return string(nameBytes), nil
}

// DownloadText fetches and decrypts a text-mode object, returning its
// UTF-8 content.
func (d *Downloader) DownloadText(ctx context.Context, id int64, passphrase []byte) (string, error) {
	meta, err := d.fetchMetadata(ctx, id)
	if err != nil {
		return "", err
	}
	if !meta.IsText {
		return "", errors.New("hakoclient: object is file mode, use DownloadFile")
	}

	key, err := cryptoframe.DeriveKey(passphrase, meta.Salt)
	if err != nil {
		return "", err
	}

	resp, err := d.openBody(ctx, id)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	ciphertext, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("hakoclient: read body: %w", err)
	}

	plaintext, err := cryptoframe.OpenOnce(key, meta.Nonce, ciphertext)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

func (d *Downloader) openBody(ctx context.Context, id int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/api/download?id="+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, &ErrTransport{Err: err}
	}
	resp, err := d.client().Do(req)
	if err != nil {
		return nil, &ErrTransport{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &ErrTransport{StatusCode: resp.StatusCode}
	}
	return resp, nil
}
