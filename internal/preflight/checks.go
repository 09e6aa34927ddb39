package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"splintarr/internal/arr"
	"splintarr/internal/credentials"
	"splintarr/internal/store"
)

const instanceCheckTimeout = 10 * time.Second

// Opener opens an arr session. arr.Open satisfies it.
type Opener func(ctx context.Context, kind arr.Kind, cfg arr.Config) (arr.Session, error)

// Decrypter opens a stored instance credential.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSecret verifies the credential key can build a cipher. The cipher is
// returned for the instance checks; it is nil when the check fails.
func CheckSecret(secret string) (Result, *credentials.Cipher) {
	const name = "Secret key"
	cipher, err := credentials.NewCipher(secret)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}, nil
	}
	return Result{Name: name, Passed: true, Detail: "usable"}, cipher
}

// CheckInstance decrypts the instance key and probes the instance with a
// single attempt.
func CheckInstance(ctx context.Context, inst *store.Instance, dec Decrypter, opener Opener) Result {
	name := instanceLabel(inst)
	if !inst.Type.Valid() {
		return Result{Name: name, Detail: fmt.Sprintf("unsupported type %q", inst.Type)}
	}
	apiKey, err := dec.Decrypt(inst.APIKey)
	if err != nil {
		return Result{Name: name, Detail: "api key cannot be decrypted (was the secret key changed?)"}
	}
	if opener == nil {
		opener = arr.Open
	}

	checkCtx, cancel := context.WithTimeout(ctx, instanceCheckTimeout)
	defer cancel()

	session, err := opener(checkCtx, arr.Kind(inst.Type), arr.Config{
		BaseURL:            inst.URL,
		APIKey:             apiKey,
		VerifySSL:          inst.VerifySSL,
		RateLimitPerSecond: inst.RateLimitPerSecond,
		Timeout:            instanceCheckTimeout,
		MaxRetries:         0,
	})
	if err != nil {
		return Result{Name: name, Detail: summarizeProbeError(err)}
	}
	defer session.Close()

	detail := "reachable"
	if v, ok := session.(interface{ Version() string }); ok && v.Version() != "" {
		detail = fmt.Sprintf("reachable (v%s)", v.Version())
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

func instanceLabel(inst *store.Instance) string {
	return fmt.Sprintf("%s #%d", strings.TrimSpace(inst.Name), inst.ID)
}

// summarizeProbeError produces a human-readable summary for probe failures.
func summarizeProbeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "probe timed out (instance unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "probe timed out (instance unreachable)"
	}
	var statusErr *arr.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case 401, 403:
			return "auth failed (invalid api key)"
		default:
			return fmt.Sprintf("probe failed (%d)", statusErr.Code)
		}
	}
	return err.Error()
}
