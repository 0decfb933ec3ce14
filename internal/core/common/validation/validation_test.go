package validation_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	errors "github.com/bhs-school/fee-payments/internal"
	"github.com/bhs-school/fee-payments/internal/core/common/validation"
)

func fieldErrors(appErr *errors.AppError) []errors.ValidationError {
	Expect(appErr).NotTo(BeNil())
	details, ok := appErr.Details.(errors.ValidationErrors)
	Expect(ok).To(BeTrue())
	return details.Errors
}

var _ = Describe("ValidationBuilder", func() {
	It("passes when every field is valid", func() {
		v := validation.NewValidator()
		v.Field("amount", decimal.RequireFromString("50000.50")).
			Positive(errors.ErrCodeInvalidAmount).
			MaxDecimalPlaces(2, errors.ErrCodeInvalidAmount)
		v.Field("email", "parent@example.com").Required().Email()
		v.Field("phone", "+256 700 123456").Required().Phone()

		Expect(v.Validate()).To(BeNil())
	})

	It("reports only the first failure of each field", func() {
		v := validation.NewValidator()
		v.Field("name", "").Required().MaxLength(3)
		v.Field("amount", decimal.Zero).Positive(errors.ErrCodeInvalidAmount)

		errs := fieldErrors(v.Validate())
		Expect(errs).To(HaveLen(2))
		Expect(errs[0]).To(Equal(errors.ValidationError{
			Field: "name", Message: "name is required", Code: string(errors.ErrCodeValidationFailed),
		}))
		Expect(errs[1].Field).To(Equal("amount"))
		Expect(errs[1].Code).To(Equal(string(errors.ErrCodeInvalidAmount)))
	})

	DescribeTable("field rules",
		func(build func(*validation.ValidationBuilder), code errors.ErrorCode) {
			v := validation.NewValidator()
			build(v)
			errs := fieldErrors(v.Validate())
			Expect(errs).To(HaveLen(1))
			Expect(errs[0].Code).To(Equal(string(code)))
		},
		Entry("negative amount", func(v *validation.ValidationBuilder) {
			v.Field("amount", decimal.NewFromInt(-1)).Positive(errors.ErrCodeInvalidAmount)
		}, errors.ErrCodeInvalidAmount),
		Entry("three decimal places", func(v *validation.ValidationBuilder) {
			v.Field("amount", decimal.RequireFromString("10.001")).MaxDecimalPlaces(2, errors.ErrCodeInvalidAmount)
		}, errors.ErrCodeInvalidAmount),
		Entry("bad email", func(v *validation.ValidationBuilder) {
			v.Field("email", "not-an-email").Email()
		}, errors.ErrCodeInvalidEmail),
		Entry("letters in phone", func(v *validation.ValidationBuilder) {
			v.Field("phone", "07OO123456").Phone()
		}, errors.ErrCodeInvalidPhone),
		Entry("too long", func(v *validation.ValidationBuilder) {
			v.Field("name", "abcdef").MaxLength(5)
		}, errors.ErrCodeValidationFailed),
		Entry("whitespace only", func(v *validation.ValidationBuilder) {
			v.Field("student_id", "   ").Required()
		}, errors.ErrCodeValidationFailed),
	)

	DescribeTable("phone numbers parents actually type",
		func(phone string, valid bool) {
			v := validation.NewValidator()
			v.Field("phone", phone).Phone()
			if valid {
				Expect(v.Validate()).To(BeNil())
			} else {
				Expect(fieldErrors(v.Validate())[0].Code).To(Equal(string(errors.ErrCodeInvalidPhone)))
			}
		},
		Entry("local mobile", "0700123456", true),
		Entry("local mobile with spaces", "0700 123 456", true),
		Entry("international without plus", "256700123456", true),
		Entry("international with plus", "+256700123456", true),
		Entry("too short", "0700123", false),
		Entry("dashes", "0700-123-456", false),
		Entry("too long", "+2567001234567890", false),
	)

	It("leaves optional empty values alone", func() {
		v := validation.NewValidator()
		v.Field("email", "").Email()
		v.Field("phone", "").Phone()
		Expect(v.Validate()).To(BeNil())
	})
})
