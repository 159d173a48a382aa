//go:build integration

package integration

import (
	"context"
	"io"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusguard/internal/daemon"
	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
	"github.com/eliteGoblin/focusd/focusguard/internal/infra"
	"github.com/eliteGoblin/focusd/focusguard/internal/policy"
	"github.com/eliteGoblin/focusd/focusguard/internal/usecase"
)

const (
	blockedPage = "chrome-extension://itest/extension/blocked.html"
	sessionID   = "chrome-100-1700000000"
)

func redirectTo(tabID int) map[string]any {
	return map[string]any{"type": "redirect", "tabId": float64(tabID), "url": blockedPage}
}

var _ = Describe("Native messaging host", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		tmpDir    string
		key       []byte
		store     *infra.EncryptedStore
		settings  *usecase.SettingsService
		scheduler *infra.TimerScheduler
		browser   *fakeBrowser
		hostOut   *io.PipeWriter
		done      chan error
	)

	pendingKeys := func() []domain.AlarmKey {
		var keys []domain.AlarmKey
		for _, p := range scheduler.Pending() {
			keys = append(keys, p.Key)
		}
		return keys
	}

	BeforeEach(func() {
		var err error
		ctx, cancel = context.WithCancel(context.Background())
		tmpDir, err = os.MkdirTemp("", "focusguard-integration-*")
		Expect(err).NotTo(HaveOccurred())

		key, err = infra.EnsureKey(infra.NewFileKeyProvider(tmpDir))
		Expect(err).NotTo(HaveOccurred())
		store, err = infra.NewEncryptedStore(tmpDir, key, sessionID)
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		settings = usecase.NewSettingsService(store, policy.NewRegistry(), logger)
		_, err = settings.Install(ctx)
		Expect(err).NotTo(HaveOccurred())

		inR, inW := io.Pipe()
		outR, outW := io.Pipe()
		hostOut = outW

		host := daemon.NewHost(daemon.DefaultHostConfig(), inR, outW, nil, logger)
		scheduler = infra.NewTimerScheduler(ctx, nil, logger)

		config := usecase.DefaultEngineConfig()
		config.BlockedPageURL = blockedPage
		engine := usecase.NewEngine(config, settings, store, scheduler, host, host,
			policy.NewClassifierJudge(policy.NewKeywordJudge(), nil, logger), logger)
		scheduler.SetHandler(func(ctx context.Context, key domain.AlarmKey) {
			engine.OnAlarm(ctx, key)
		})

		done = make(chan error, 1)
		go func() { done <- host.Run(ctx, engine) }()
		browser = newFakeBrowser(inW, outR)
	})

	AfterEach(func() {
		Expect(browser.Disconnect()).To(Succeed())
		Eventually(done, 2*time.Second).Should(Receive(BeNil()))
		scheduler.Stop()
		hostOut.Close()
		cancel()
		store.Close()
		os.RemoveAll(tmpDir)
	})

	Describe("manual mode", func() {
		BeforeEach(func() {
			Expect(settings.SetGroupEnabled(ctx, policy.GroupSocialMedia, true)).To(Succeed())
		})

		It("redirects a tab on an enabled group's site", func() {
			browser.Open(1, "https://www.facebook.com/feed", "Feed")

			Eventually(browser.Outbox, 2*time.Second).Should(Receive(Equal(redirectTo(1))))
			Eventually(func() string { return browser.Tab(1).URL }).Should(Equal(blockedPage))
		})

		It("lets allow list entries through", func() {
			Expect(settings.AddAllowEntry(ctx, "https://facebook.com/groups/golang")).To(Succeed())

			browser.Open(1, "https://facebook.com/groups/golang/posts/1", "Go")

			Consistently(browser.Outbox, 300*time.Millisecond).ShouldNot(Receive())
		})

		It("blocks committed top-frame navigations only", func() {
			browser.Send(map[string]any{
				"type": "navigation_committed", "tabId": 2, "url": "https://reddit.com/r/all", "frameId": 0,
			})
			Eventually(browser.Outbox, 2*time.Second).Should(Receive(Equal(redirectTo(2))))

			browser.Send(map[string]any{
				"type": "navigation_committed", "tabId": 2, "url": "https://reddit.com/r/all", "frameId": 3,
			})
			Consistently(browser.Outbox, 300*time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("AI mode escalation", func() {
		const offTopic = "https://news.ycombinator.com/item?id=1"

		BeforeEach(func() {
			Expect(settings.SetMode(ctx, domain.ModeAI)).To(Succeed())
			Expect(settings.SetTopic(ctx, "golang generics")).To(Succeed())
		})

		It("warns, then blocks the page for the rest of the session", func() {
			warn := domain.AlarmKey{Type: domain.AlarmWarn, TabID: 5, URL: offTopic}
			hard := domain.AlarmKey{Type: domain.AlarmHard, TabID: 5, URL: offTopic}

			browser.Open(5, offTopic, "Hacker News")
			Eventually(pendingKeys, 2*time.Second).Should(ContainElement(warn))

			By("the warn alarm shows a notification and schedules the hard block")
			browser.FireAlarm(warn)
			var msg map[string]any
			Eventually(browser.Outbox, 2*time.Second).Should(Receive(&msg))
			Expect(msg["type"]).To(Equal("notify"))
			Expect(msg["notification"]).To(HaveKeyWithValue("title", "Stay on task"))
			Eventually(pendingKeys, 2*time.Second).Should(ContainElement(hard))

			By("the hard alarm redirects and records the session block")
			browser.FireAlarm(hard)
			Eventually(browser.Outbox, 2*time.Second).Should(Receive(Equal(redirectTo(5))))
			blocked, err := store.Has(ctx, offTopic)
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked).To(BeTrue())

			By("the URL stays blocked in other tabs and in manual mode")
			Expect(settings.SetMode(ctx, domain.ModeManual)).To(Succeed())
			browser.Open(6, offTopic, "Hacker News")
			Eventually(browser.Outbox, 2*time.Second).Should(Receive(Equal(redirectTo(6))))
		})

		It("treats alarms for tabs that moved on as stale", func() {
			warn := domain.AlarmKey{Type: domain.AlarmWarn, TabID: 7, URL: offTopic}
			browser.Open(7, offTopic, "Hacker News")
			Eventually(pendingKeys, 2*time.Second).Should(ContainElement(warn))

			browser.Open(7, "https://stackoverflow.com/questions/1", "generics")
			browser.FireAlarm(warn)
			Consistently(browser.Outbox, 300*time.Millisecond).ShouldNot(Receive())

			browser.CloseTab(7)
			browser.FireAlarm(domain.AlarmKey{Type: domain.AlarmHard, TabID: 7, URL: offTopic})
			Consistently(browser.Outbox, 300*time.Millisecond).ShouldNot(Receive())

			blocked, err := store.Has(ctx, offTopic)
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked).To(BeFalse())
		})

		It("clears pending timers when the page turns out to be on topic", func() {
			const video = "https://www.youtube.com/watch?v=abc"
			warn := domain.AlarmKey{Type: domain.AlarmWarn, TabID: 8, URL: video}

			browser.Open(8, video, "Official music video")
			Eventually(pendingKeys, 2*time.Second).Should(ContainElement(warn))

			browser.Open(8, video, "Golang generics deep dive")
			Eventually(pendingKeys, 2*time.Second).ShouldNot(ContainElement(warn))
		})
	})

	Describe("browser sessions", func() {
		It("forgets session blocks when a new browser session opens the store", func() {
			Expect(store.Add(ctx, "https://x.com/home")).To(Succeed())
			Expect(store.Close()).To(Succeed())

			same, err := infra.NewEncryptedStore(tmpDir, key, sessionID)
			Expect(err).NotTo(HaveOccurred())
			blocked, err := same.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked).To(ConsistOf("https://x.com/home"))
			Expect(same.Close()).To(Succeed())

			next, err := infra.NewEncryptedStore(tmpDir, key, "chrome-200-1700000500")
			Expect(err).NotTo(HaveOccurred())
			defer next.Close()
			blocked, err = next.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked).To(BeEmpty())

			s := usecase.NewSettingsService(next, policy.NewRegistry(), zap.NewNop())
			loaded, err := s.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.BlockedGroups).To(HaveKey(policy.GroupSocialMedia), "durable settings survive")
		})
	})
})
