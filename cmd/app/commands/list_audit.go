package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/bizmatters/zerotouch-keys/internal/audit"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
	keysUseCase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
)

// Signature states reported by list-audit --verify.
const (
	signatureValid     = "valid"
	signatureInvalid   = "INVALID"
	signatureUnchecked = "unchecked"
)

// AuditLog reads and verifies signed break-glass records.
type AuditLog interface {
	List(ctx context.Context, env string) ([]*audit.Record, error)
	Verify(key []byte, rec *audit.Record) error
}

type auditOutput struct {
	ID                string `json:"id"`
	CreatedAt         string `json:"created_at"`
	Action            string `json:"action"`
	Operator          string `json:"operator"`
	Reason            string `json:"reason,omitempty"`
	PublicKey         string `json:"public_key"`
	PreviousPublicKey string `json:"previous_public_key,omitempty"`
	PreviousBackup    string `json:"previous_backup,omitempty"`
	SelfTest          bool   `json:"self_test"`
	Signature         string `json:"signature,omitempty"`
}

// RunListAudit prints the break-glass audit records of env, oldest first.
//
// With verify, each record signed by the key currently live for env is
// checked; records signed by any other key are reported as unchecked. A
// record failing its check makes the command fail after printing.
func RunListAudit(
	ctx context.Context,
	auditLog AuditLog,
	live keysUseCase.LiveContext,
	cipher keysService.Cipher,
	logger *slog.Logger,
	writer io.Writer,
	env keysDomain.Environment,
	verify bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	records, err := auditLog.List(ctx, env.String())
	if err != nil {
		return fmt.Errorf("failed to list audit records: %w", err)
	}

	states := make([]string, len(records))
	var invalid int
	if verify && len(records) > 0 {
		invalid, err = verifyRecords(ctx, auditLog, live, cipher, env, records, states)
		if err != nil {
			return err
		}
	}

	logger.Info("audit records listed",
		slog.String("environment", env.String()),
		slog.Int("count", len(records)),
		slog.Bool("verified", verify),
		slog.Int("invalid", invalid),
	)

	if err := outputAudit(writer, env, records, states, format); err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%s: %d audit records failed verification: %w", env, invalid, audit.ErrSignatureInvalid)
	}
	return nil
}

func verifyRecords(
	ctx context.Context,
	auditLog AuditLog,
	live keysUseCase.LiveContext,
	cipher keysService.Cipher,
	env keysDomain.Environment,
	records []*audit.Record,
	states []string,
) (int, error) {
	key, ok, err := live.Current(ctx, env.String())
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", live.Describe(env.String()), err)
	}
	if !ok {
		return 0, fmt.Errorf("%s: no key in %s to verify with: %w",
			env, live.Describe(env.String()), keysDomain.ErrKeyNotFound)
	}
	defer keysDomain.Zero(key)

	publicKey, err := cipher.PublicKey(key)
	if err != nil {
		return 0, err
	}

	var invalid int
	for i, rec := range records {
		if rec.PublicKey != publicKey {
			states[i] = signatureUnchecked
			continue
		}
		switch err := auditLog.Verify(key, rec); {
		case err == nil:
			states[i] = signatureValid
		case errors.Is(err, audit.ErrSignatureInvalid):
			states[i] = signatureInvalid
			invalid++
		default:
			return 0, err
		}
	}
	return invalid, nil
}

func outputAudit(
	writer io.Writer,
	env keysDomain.Environment,
	records []*audit.Record,
	states []string,
	format string,
) error {
	if format == "json" {
		out := make([]auditOutput, 0, len(records))
		for i, rec := range records {
			out = append(out, auditOutput{
				ID:                rec.ID.String(),
				CreatedAt:         rec.CreatedAt.UTC().Format(time.RFC3339),
				Action:            rec.Action,
				Operator:          rec.Operator,
				Reason:            rec.Reason,
				PublicKey:         rec.PublicKey,
				PreviousPublicKey: rec.PreviousPublicKey,
				PreviousBackup:    rec.PreviousBackup,
				SelfTest:          rec.SelfTest,
				Signature:         states[i],
			})
		}
		return writeJSON(writer, out)
	}

	if len(records) == 0 {
		_, _ = fmt.Fprintf(writer, "No audit records found for %s\n", env)
		return nil
	}

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CREATED AT\tOPERATOR\tPUBLIC KEY\tPREVIOUS BACKUP\tSIGNATURE\tREASON")
	for i, rec := range records {
		state := states[i]
		if state == "" {
			state = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.Operator,
			rec.PublicKey,
			orDash(rec.PreviousBackup),
			state,
			rec.Reason,
		)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
