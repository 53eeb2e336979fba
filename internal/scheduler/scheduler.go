package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fusae/sentinel/internal/aggregate"
	"github.com/fusae/sentinel/internal/classify"
	"github.com/fusae/sentinel/internal/config"
	"github.com/fusae/sentinel/internal/extract"
	"github.com/fusae/sentinel/internal/feedback"
	"github.com/fusae/sentinel/internal/llm"
	"github.com/fusae/sentinel/internal/mail"
	"github.com/fusae/sentinel/internal/notify"
	"github.com/fusae/sentinel/internal/store"
)

// Result holds the accounting for one full RunOnce call.
type Result struct {
	MailsFound  int
	Articles    int
	Negative    int
	Suppressed  int
	Duplicates  int
	NewEvents   int
	Escalations int
	Errors      []error
}

// Scheduler implements C9: it drives the poll → extract → classify →
// aggregate → notify pipeline on a fixed interval, and a slower interval
// for feedback rule compilation.
type Scheduler struct {
	cfg        *config.Config
	db         *store.DB
	poller     *mail.Poller
	extractor  *extract.Extractor
	classifier *classify.Classifier
	aggregator *aggregate.Aggregator
	dispatcher *notify.Dispatcher
	signer     *notify.LinkSigner
	compiler   *feedback.Compiler

	pMail int

	wg       sync.WaitGroup
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// New builds a Scheduler from configuration and its dependencies. provider
// may be nil, in which case the classifier always falls through to an
// llm-unavailable verdict on the LLM step (never a false negative classification).
func New(cfg *config.Config, db *store.DB, provider llm.Provider, suppressKeywords func() []string) *Scheduler {
	poller := mail.New(mail.Config{
		Server:   cfg.Email.IMAPServer,
		Port:     cfg.Email.IMAPPort,
		Address:  cfg.Email.EmailAddress,
		Password: cfg.Email.AppPassword,
		Sender:   cfg.Email.Rules.Sender,
		Timeout:  30 * time.Second,
	})

	pool := extract.NewPool(cfg.Concurrency.PURL, 20*time.Second, 2, cfg.Aggregation.BodyByteCap)
	extractor := extract.New(pool, cfg.Email.Rules.VendorDomain)

	classifier := classify.New(provider, db, suppressKeywords, cfg.AI.MaxTokens, cfg.Feedback.MaxFewShot)

	window := time.Duration(cfg.Aggregation.WindowHours) * time.Hour
	aggregator := aggregate.New(db, window, cfg.Aggregation.TrackingParams)

	dispatcher := notify.NewDispatcher(cfg.Notification.Webhooks, 10*time.Second, 3)
	signer := notify.NewLinkSigner(cfg.Feedback.LinkBaseURL, cfg.Feedback.LinkSecret, time.Duration(cfg.Feedback.LinkTTLHours)*time.Hour)
	compiler := feedback.NewCompiler(db, cfg.Feedback.RuleThreshold, 30*24*time.Hour)

	return &Scheduler{
		cfg:        cfg,
		db:         db,
		poller:     poller,
		extractor:  extractor,
		classifier: classifier,
		aggregator: aggregator,
		dispatcher: dispatcher,
		signer:     signer,
		compiler:   compiler,
		pMail:      cfg.Concurrency.PMail,
	}
}

// RunOnce executes exactly one poll tick: fetch new mail, extract candidate
// articles, classify, aggregate, and notify — bounded by a worker pool of
// P_mail concurrent mails, but each mail's articles are processed in their
// deterministic extraction order.
func (s *Scheduler) RunOnce(ctx context.Context) *Result {
	r := &Result{}

	mails, err := s.poller.Poll(func(token string) (bool, error) {
		existed, err := s.db.GetProcessedMail(token)
		if err != nil {
			return false, err
		}
		if existed != nil {
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		r.Errors = append(r.Errors, fmt.Errorf("polling mail: %w", err))
		return r
	}
	r.MailsFound = len(mails)
	if len(mails) == 0 {
		return r
	}

	var mu sync.Mutex
	sem := make(chan struct{}, s.pMail)
	var wg sync.WaitGroup

	for _, m := range mails {
		wg.Add(1)
		sem <- struct{}{}
		go func(m mail.RawMail) {
			defer wg.Done()
			defer func() { <-sem }()

			mailResult := s.processMail(ctx, m)

			mu.Lock()
			r.Articles += mailResult.Articles
			r.Negative += mailResult.Negative
			r.Suppressed += mailResult.Suppressed
			r.Duplicates += mailResult.Duplicates
			r.NewEvents += mailResult.NewEvents
			r.Escalations += mailResult.Escalations
			r.Errors = append(r.Errors, mailResult.Errors...)
			mu.Unlock()
		}(m)
	}
	wg.Wait()

	return r
}

// processMail runs C3-C6 for one mail. Article ordering within the mail is
// preserved (no reordering across concurrent fetches), per the extractor's
// own ordering guarantee.
func (s *Scheduler) processMail(ctx context.Context, m mail.RawMail) *Result {
	r := &Result{}

	if _, err := s.db.UpsertProcessedMail(m.Token, extract.ParseHospitalName(m.Subject, m.Body), m.ReceivedAt); err != nil {
		r.Errors = append(r.Errors, fmt.Errorf("recording processed mail %s: %w", m.Token, err))
		return r
	}

	articles := s.extractor.Extract(ctx, m)
	r.Articles = len(articles)

	for _, art := range articles {
		verdict, err := s.classifier.Classify(ctx, art, art.SourcePlatform)
		if err != nil {
			r.Errors = append(r.Errors, fmt.Errorf("classifying %s: %w", art.URL, err))
			continue
		}
		if !verdict.IsNegative {
			if strings.HasPrefix(verdict.Reason, "rule:") || strings.HasPrefix(verdict.Reason, "keyword:") {
				r.Suppressed++
			}
			if _, err := s.db.InsertSentiment(store.SentimentInsert{
				SentimentID:  uuid.NewString(),
				EventID:      nil,
				HospitalName: art.Hospital,
				Title:        verdict.Title,
				Source:       art.SourcePlatform,
				Content:      art.Body,
				Reason:       verdict.Reason,
				Severity:     verdict.Severity,
				URL:          art.URL,
				IsDuplicate:  false,
			}); err != nil {
				r.Errors = append(r.Errors, fmt.Errorf("persisting non-negative sentiment for %s: %w", art.URL, err))
			}
			continue
		}
		r.Negative++

		aggResult, err := s.aggregator.Aggregate(verdict, art)
		if err != nil {
			r.Errors = append(r.Errors, fmt.Errorf("aggregating %s: %w", art.URL, err))
			continue
		}
		if aggResult.IsDuplicate {
			r.Duplicates++
		} else {
			r.NewEvents++
		}
		if aggResult.IsDuplicate && aggResult.Notify {
			r.Escalations++
		}

		if aggResult.Notify {
			s.notify(ctx, art, verdict, aggResult)
		}
	}

	return r
}

func (s *Scheduler) notify(ctx context.Context, art extract.Article, v classify.Verdict, agg aggregate.Result) {
	event, err := s.db.GetEvent(agg.EventID)
	total := 1
	if err == nil && event != nil {
		total = event.TotalCount
	}

	queueID := uuid.NewString()
	if err := s.db.EnqueueFeedback(queueID, "", agg.SentimentID); err != nil {
		log.Printf("scheduler: enqueueing feedback for %s: %v", agg.SentimentID, err)
	}

	s.dispatcher.Send(ctx, notify.Payload{
		Hospital:    art.Hospital,
		Title:       v.Title,
		Severity:    v.Severity,
		Source:      art.SourcePlatform,
		Body:        art.Body,
		Reason:      v.Reason,
		URL:         art.URL,
		EventCount:  total,
		Escalated:   agg.IsDuplicate,
		FeedbackURL: s.signer.Build(queueID, agg.SentimentID),
	})
}

// CompileRules runs the feedback rule compiler once.
func (s *Scheduler) CompileRules() (int, error) {
	return s.compiler.Compile()
}

// Run drives the poll loop on cfg.Runtime.CheckInterval and the rule
// compiler on cfg.Runtime.RuleCompileInterval until ctx is cancelled or
// Shutdown is called. Each tick is tracked in s.wg so Shutdown can wait for
// an in-flight RunOnce or rule compilation to finish before returning.
func (s *Scheduler) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
	defer cancel()

	pollInterval := time.Duration(s.cfg.Runtime.CheckInterval) * time.Second
	compileInterval := time.Duration(s.cfg.Runtime.RuleCompileInterval) * time.Second

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	compileTicker := time.NewTicker(compileInterval)
	defer compileTicker.Stop()

	for {
		select {
		case <-runCtx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-pollTicker.C:
			s.wg.Add(1)
			func() {
				defer s.wg.Done()
				result := s.RunOnce(runCtx)
				log.Printf("scheduler: tick complete: %d mails, %d articles, %d negative, %d new events, %d escalations, %d errors",
					result.MailsFound, result.Articles, result.Negative, result.NewEvents, result.Escalations, len(result.Errors))
				for _, err := range result.Errors {
					log.Printf("scheduler: %v", err)
				}
			}()
		case <-compileTicker.C:
			s.wg.Add(1)
			func() {
				defer s.wg.Done()
				n, err := s.CompileRules()
				if err != nil {
					log.Printf("scheduler: rule compilation failed: %v", err)
					return
				}
				log.Printf("scheduler: compiled %d new suppression rules", n)
			}()
		}
	}
}

// Shutdown cancels Run's loop and waits up to deadline for any in-flight
// RunOnce or rule compilation tick to finish. It returns an error if the
// deadline elapses with work still in flight.
func (s *Scheduler) Shutdown(deadline time.Duration) error {
	s.cancelMu.Lock()
	cancel := s.cancel
	s.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-time.After(deadline):
		return fmt.Errorf("scheduler: shutdown deadline of %s exceeded with work still in flight", deadline)
	}
}
