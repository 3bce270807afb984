package claim_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/expense-claims/internal"
	"github.com/frahmantamala/expense-claims/internal/claim"
)

var _ = Describe("Claim", func() {
	var (
		c   *claim.Claim
		now time.Time
	)

	BeforeEach(func() {
		c = claim.NewClaim(1, nil, "travel", decimal.RequireFromString("42.50"))
		now = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	})

	It("starts PENDING without a reviewer or reason", func() {
		Expect(c.Status).To(Equal(claim.StatusPending))
		Expect(c.ReasonForRejection).To(BeNil())
		Expect(c.ManagerID).To(BeNil())
		Expect(c.OwnedBy(1)).To(BeTrue())
		Expect(c.OwnedBy(2)).To(BeFalse())
	})

	It("records the reviewer on approval", func() {
		Expect(c.Approve(7, now)).To(Succeed())
		Expect(c.Status).To(Equal(claim.StatusApproved))
		Expect(*c.ManagerID).To(Equal(int64(7)))
		Expect(*c.ReviewedAt).To(Equal(now))
		Expect(c.ReasonForRejection).To(BeNil())
	})

	It("keeps the reason only on rejection", func() {
		Expect(c.Reject(7, "  over budget ", now)).To(Succeed())
		Expect(c.Status).To(Equal(claim.StatusRejected))
		Expect(*c.ReasonForRejection).To(Equal("over budget"))
	})

	It("requires a reason to reject", func() {
		Expect(c.Reject(7, "   ", now)).To(MatchError(claim.ErrReasonRequired))
		Expect(c.Status).To(Equal(claim.StatusPending))
	})

	DescribeTable("refuses to leave a terminal state",
		func(first func(*claim.Claim) error, second func(*claim.Claim) error, final claim.Status) {
			Expect(first(c)).To(Succeed())
			Expect(second(c)).To(MatchError(claim.ErrInvalidTransition))
			Expect(c.Status).To(Equal(final))
		},
		Entry("approve after reject",
			func(c *claim.Claim) error { return c.Reject(7, "over budget", now) },
			func(c *claim.Claim) error { return c.Approve(8, now) },
			claim.StatusRejected),
		Entry("reject after approve",
			func(c *claim.Claim) error { return c.Approve(7, now) },
			func(c *claim.Claim) error { return c.Reject(8, "late", now) },
			claim.StatusApproved),
		Entry("approve twice",
			func(c *claim.Claim) error { return c.Approve(7, now) },
			func(c *claim.Claim) error { return c.Approve(8, now) },
			claim.StatusApproved),
	)

	It("parses statuses case-insensitively", func() {
		st, ok := claim.ParseStatus("approved")
		Expect(ok).To(BeTrue())
		Expect(st).To(Equal(claim.StatusApproved))

		_, ok = claim.ParseStatus("paid")
		Expect(ok).To(BeFalse())
	})

	It("renders the date and a two-decimal amount", func() {
		d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		c.Date = &d
		resp := c.ToResponse()
		Expect(*resp.Date).To(Equal("2024-01-01"))
		Expect(resp.Amount).To(Equal("42.50"))
	})

	It("round-trips through the data model", func() {
		Expect(c.Reject(3, "dup", now)).To(Succeed())
		back := claim.FromDataModel(claim.ToDataModel(c))
		Expect(back).To(Equal(c))
	})
})

var _ = Describe("SubmitClaimDTO", func() {
	It("accepts an omitted date", func() {
		date, err := claim.SubmitClaimDTO{Category: "meals", Amount: decimal.NewFromInt(10)}.Validate()
		Expect(err).NotTo(HaveOccurred())
		Expect(date).To(BeNil())
	})

	It("rejects a malformed date with INVALID_DATE", func() {
		_, err := claim.SubmitClaimDTO{Date: "01/02/2024", Category: "meals", Amount: decimal.NewFromInt(10)}.Validate()
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidDate))
	})

	It("rejects a date in the future", func() {
		later := time.Now().AddDate(0, 0, 3).Format(claim.DateLayout)
		_, err := claim.SubmitClaimDTO{Date: later, Category: "meals", Amount: decimal.NewFromInt(10)}.Validate()
		Expect(err).To(HaveOccurred())
	})

	It("accepts today for a client far ahead of UTC", func() {
		today := time.Now().In(time.FixedZone("LINT", 14*60*60)).Format(claim.DateLayout)
		date, err := claim.SubmitClaimDTO{Date: today, Category: "meals", Amount: decimal.NewFromInt(10)}.Validate()
		Expect(err).NotTo(HaveOccurred())
		Expect(date.Format(claim.DateLayout)).To(Equal(today))
	})

	DescribeTable("amount precision",
		func(amount string, valid bool) {
			_, err := claim.SubmitClaimDTO{Category: "travel", Amount: decimal.RequireFromString(amount)}.Validate()
			if valid {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			details := appErr.Details.(internal.ValidationErrors)
			Expect(details.Errors).To(ContainElement(HaveField("Code", string(internal.ErrCodeInvalidAmount))))
		},
		Entry("whole cents", "42.55", true),
		Entry("trailing zeros", "10.500", true),
		Entry("sub-cent amount that would store as zero", "0.001", false),
		Entry("sub-cent remainder", "42.555", false),
	)

	It("rejects a missing category and a non-positive amount together", func() {
		_, err := claim.SubmitClaimDTO{Amount: decimal.Zero}.Validate()
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(400))
		Expect(appErr.GetDetailedMessage()).To(ContainSubstring("category"))
		Expect(appErr.GetDetailedMessage()).To(ContainSubstring("amount"))
	})
})
