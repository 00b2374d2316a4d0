package runner

import (
	"bytes"
	"context"
	"errors"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"perfomatic/internal/audit"
	"perfomatic/internal/budget"
	"perfomatic/internal/config"
	"perfomatic/internal/report"
)

var _ = ginkgo.Describe("Comparing audit results to the budget", func() {
	var (
		engine *fakeEngine
		out    *bytes.Buffer
		r      *Runner
	)

	ginkgo.BeforeEach(func() {
		engine = newFakeEngine()
		out = &bytes.Buffer{}
		r = New(engine, out)
	})

	ttfbBudget := config.Descriptor{
		URLs:    []string{"http://localhost:3000"},
		Overall: f64(90),
		Budget:  config.RawBudget{{Key: "time-to-first-byte", Value: true}},
	}

	ginkgo.When("the site meets every threshold", func() {
		ginkgo.It("reports success with exit code 0", func() {
			engine.site("http://localhost:3000", 92, map[string]audit.Metric{
				"time-to-first-byte": {Score: audit.Score(1), ScoringMode: audit.ModeBinary},
			})

			rep, err := r.Run(context.Background(), mustResolve(ttfbBudget))
			gomega.Expect(err).To(gomega.Succeed())

			sum := rep.Summarize()
			gomega.Expect(sum.ExitCode).To(gomega.Equal(0))
			gomega.Expect(sum.Passed).To(gomega.Equal(2))
			gomega.Expect(rep.Help).To(gomega.BeEmpty())
			gomega.Expect(out.String()).To(gomega.ContainSubstring("Preparing Perfomatic tests..."))
			gomega.Expect(out.String()).To(gomega.ContainSubstring("   Testing site: http://localhost:3000 ..."))
			gomega.Expect(out.String()).To(gomega.ContainSubstring("     done."))
		})
	})

	ginkgo.When("the overall score is below the budget", func() {
		ginkgo.It("fails with a nonzero exit code and an overall help entry", func() {
			engine.site("http://localhost:3000", 85, map[string]audit.Metric{
				"time-to-first-byte": {Score: audit.Score(1), ScoringMode: audit.ModeBinary},
			})

			rep, err := r.Run(context.Background(), mustResolve(ttfbBudget))
			gomega.Expect(err).To(gomega.Succeed())

			gomega.Expect(rep.Summarize().ExitCode).NotTo(gomega.Equal(0))
			gomega.Expect(rep.Sites[0].Judgments[0].Scope).To(gomega.Equal(budget.OverallScope))
			gomega.Expect(rep.Sites[0].Judgments[0].Passed).To(gomega.BeFalse())
			gomega.Expect(rep.Help).To(gomega.HaveLen(1))
			gomega.Expect(rep.Help[0].Key).To(gomega.Equal("overall"))
		})
	})

	ginkgo.When("a budget metric is missing from the audit", func() {
		ginkgo.It("records an unknown-metric error naming the key", func() {
			engine.site("http://localhost:3000", 95, map[string]audit.Metric{
				"speed-index": {Score: audit.Score(1)},
			})
			cfg := mustResolve(config.Descriptor{
				URLs:   []string{"http://localhost:3000"},
				Budget: config.RawBudget{{Key: "first-contentful-paint", Value: 90}},
			})

			rep, err := r.Run(context.Background(), cfg)
			gomega.Expect(err).To(gomega.Succeed())

			site := rep.Sites[0]
			gomega.Expect(budget.IsUnknownMetric(site.Err)).To(gomega.BeTrue())
			gomega.Expect(site.Err.Error()).To(gomega.ContainSubstring("first-contentful-paint"))
			gomega.Expect(rep.Summarize().ExitCode).To(gomega.Equal(1))
		})
	})

	ginkgo.When("one of several sites is unreachable", func() {
		ginkgo.It("isolates the failure and audits the rest", func() {
			engine.site("http://a", 99, nil).site("http://c", 99, nil)
			engine.errs["http://b"] = audit.NewInvokerError(audit.KindUnreachable, "http://b", errors.New("net::ERR_CONNECTION_REFUSED"))
			cfg := mustResolve(config.Descriptor{URLs: []string{"http://a", "http://b", "http://c"}})

			rep, err := r.Run(context.Background(), cfg)
			gomega.Expect(err).To(gomega.Succeed())

			gomega.Expect(engine.Calls()).To(gomega.Equal([]string{"http://a", "http://b", "http://c"}))
			gomega.Expect(rep.Sites).To(gomega.HaveLen(3))
			gomega.Expect(audit.KindOf(rep.Sites[1].Err)).To(gomega.Equal(audit.KindUnreachable))
			gomega.Expect(report.ErrorKind(rep.Sites[1].Err)).To(gomega.Equal("unreachable"))
			gomega.Expect(rep.Summarize().Failed).To(gomega.Equal(1))
		})
	})

	ginkgo.When("the browser cannot be launched", func() {
		ginkgo.It("aborts the run", func() {
			engine.errs["http://a"] = audit.NewFatalError(audit.KindLaunch, "http://a", errors.New("chrome not found"))
			engine.site("http://b", 99, nil)
			cfg := mustResolve(config.Descriptor{URLs: []string{"http://a", "http://b"}})

			rep, err := r.Run(context.Background(), cfg)
			gomega.Expect(rep).To(gomega.BeNil())
			gomega.Expect(audit.IsFatal(err)).To(gomega.BeTrue())
			gomega.Expect(engine.Calls()).To(gomega.Equal([]string{"http://a"}))
		})
	})
})
