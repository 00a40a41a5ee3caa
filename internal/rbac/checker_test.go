package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/tradecore/access-management/internal"
	"github.com/tradecore/access-management/internal/auth"
)

type mockVerifier struct {
	claims *auth.Claims
	err    error
	calls  int
}

func (m *mockVerifier) ValidateAccessToken(_ string) (*auth.Claims, error) {
	m.calls++
	return m.claims, m.err
}

type mockSnapshots struct {
	entry *CacheEntry
	err   error
	panic bool
	calls int
}

func (m *mockSnapshots) Resolve(_ context.Context, _ int64) (*CacheEntry, error) {
	m.calls++
	if m.panic {
		panic("snapshot store blew up")
	}
	return m.entry, m.err
}

var _ = ginkgo.Describe("Checker", func() {
	var (
		verifier  *mockVerifier
		snapshots *mockSnapshots
		checker   *Checker
		ctx       context.Context
		guard     Guard
	)

	ginkgo.BeforeEach(func() {
		verifier = &mockVerifier{claims: &auth.Claims{UserID: "42"}}
		snapshots = &mockSnapshots{
			entry: &CacheEntry{
				UserID:   42,
				RoleName: "Finance",
				Permissions: []PermissionSnapshot{
					{PermissionID: "perm-1", Name: "View Invoices", API: ActionView, Module: "Billing", Route: "invoices"},
				},
				FetchedAt: time.Now(),
			},
		}
		checker = NewChecker(verifier, snapshots, testLogger())
		ctx = context.Background()
		guard = Guard{API: ActionView, Name: "View Invoices", Module: "Billing", Route: "invoices"}
	})

	ginkgo.Context("token handling", func() {
		ginkgo.It("should reject a missing token before touching verifier or snapshots", func() {
			err := checker.Check(ctx, "", guard)

			gomega.Expect(err).To(gomega.Equal(internal.ErrMissingToken))
			gomega.Expect(verifier.calls).To(gomega.Equal(0))
			gomega.Expect(snapshots.calls).To(gomega.Equal(0))
		})

		ginkgo.It("should map an expired token", func() {
			verifier.claims = nil
			verifier.err = auth.ErrTokenExpired

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.Equal(internal.ErrTokenExpired))
		})

		ginkgo.It("should map an invalid token", func() {
			verifier.claims = nil
			verifier.err = auth.ErrInvalidToken

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
		})

		ginkgo.It("should treat other verification failures as malformed", func() {
			verifier.claims = nil
			verifier.err = errors.New("unexpected signing method")

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeUnauthorized))
			gomega.Expect(appErr.Message).To(gomega.ContainSubstring("Malformed token"))
		})

		ginkgo.It("should reject a token with an empty subject", func() {
			verifier.claims = &auth.Claims{UserID: ""}

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
		})

		ginkgo.It("should reject a token with a non-numeric subject", func() {
			verifier.claims = &auth.Claims{UserID: "not-a-number"}

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidToken))
		})
	})

	ginkgo.Context("tuple matching", func() {
		ginkgo.It("should allow a subject whose snapshot holds the exact tuple", func() {
			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should deny when any of the four fields differs", func() {
			guard.Route = "reports"

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeForbidden))
			gomega.Expect(appErr.Message).To(gomega.ContainSubstring(`Forbidden: Role lacks permission "View Invoices" (VIEW - Billing)`))
		})

		ginkgo.It("should deny an empty snapshot", func() {
			snapshots.entry.Permissions = nil

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should match the action case-sensitively", func() {
			// Matching is byte-exact; the tuple is a key, not a search.
			guard.API = "View"

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Context("SuperAdmin bypass", func() {
		ginkgo.BeforeEach(func() {
			snapshots.entry.RoleName = "SuperAdmin"
			snapshots.entry.Permissions = nil
		})

		ginkgo.It("should allow any guard without consulting the snapshot permissions", func() {
			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should match the role name case-insensitively", func() {
			snapshots.entry.RoleName = "superadmin"

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should bypass even an incomplete guard", func() {
			err := checker.Check(ctx, "some-token", Guard{})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})
	})

	ginkgo.Context("guard misconfiguration", func() {
		ginkgo.It("should surface an incomplete guard as a server-side config error", func() {
			guard.Name = ""

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeConfig))
			gomega.Expect(appErr.StatusCode).To(gomega.Equal(500))
		})
	})

	ginkgo.Context("failure containment", func() {
		ginkgo.It("should pass through typed snapshot errors", func() {
			snapshots.entry = nil
			snapshots.err = internal.ErrUserNotFound

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.Equal(internal.ErrUserNotFound))
		})

		ginkgo.It("should wrap untyped snapshot errors", func() {
			snapshots.entry = nil
			snapshots.err = errors.New("redis gone")

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeInternal))
		})

		ginkgo.It("should convert a panic into an internal error", func() {
			snapshots.panic = true

			err := checker.Check(ctx, "some-token", guard)

			gomega.Expect(err).To(gomega.HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeInternal))
			gomega.Expect(appErr.Message).To(gomega.Equal("Permission validation failed"))
		})
	})
})
