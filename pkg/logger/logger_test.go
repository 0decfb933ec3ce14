package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bhs-school/fee-payments/pkg/logger"
)

var _ = Describe("Logger", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		DeferCleanup(func() { logger.Init("development", "", "") })
	})

	It("writes JSON at info in production", func() {
		logger.InitWithWriter(buf, "production", "", "")

		logger.LoggerWrapper().Debug("hidden")
		logger.LoggerWrapper().Info("fee payment recorded", "tx_ref", "BHS-2025-S123-1")

		var line map[string]interface{}
		Expect(json.Unmarshal(buf.Bytes(), &line)).To(Succeed())
		Expect(line).To(HaveKeyWithValue("msg", "fee payment recorded"))
		Expect(line).To(HaveKeyWithValue("tx_ref", "BHS-2025-S123-1"))
	})

	It("lets an explicit level and format win", func() {
		logger.InitWithWriter(buf, "production", "warn", "text")

		logger.LoggerWrapper().Info("dropped")
		logger.LoggerWrapper().Warn("kept")

		Expect(buf.String()).NotTo(ContainSubstring("dropped"))
		Expect(buf.String()).To(ContainSubstring("msg=kept"))
	})

	It("carries fields through the context", func() {
		logger.InitWithWriter(buf, "development", "debug", "json")

		ctx := logger.With(context.Background(), "trace_id", "abc123")
		logger.From(ctx).Info("webhook received")

		Expect(buf.String()).To(ContainSubstring(`"trace_id":"abc123"`))
	})

	It("falls back to the default logger", func() {
		Expect(logger.From(context.Background())).To(BeIdenticalTo(logger.LoggerWrapper()))
		Expect(logger.Into(context.Background(), logger.Discard())).NotTo(BeNil())
		Expect(logger.From(nil)).To(BeAssignableToTypeOf(&slog.Logger{}))
	})
})
