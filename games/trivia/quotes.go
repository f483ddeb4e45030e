/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// OptionCount is the number of candidate answers shown per question.
const OptionCount = 4

// DefaultQuoteURL serves one random quote per request.
const DefaultQuoteURL = "https://api.breakingbadquotes.xyz/v1/quotes"

// Speakers is the canonical answer pool.
var Speakers = []string{
	"Walter White",
	"Saul Goodman",
	"Jesse Pinkman",
	"Walter White Jr",
	"Skyler White",
	"Gustavo Fring",
	"Hank Schrader",
	"Mike Ehrmantraut",
	"The fly",
	"Badger",
}

// Provider supplies questions.
type Provider interface {
	FetchQuestion(ctx context.Context) (Question, error)
}

// BuildOptions picks OptionCount distinct distractors from pool and puts
// answer in one of the slots at random.
func BuildOptions(answer string, pool []string, r *rand.Rand) ([]string, error) {
	distractors := make([]string, 0, len(pool))
	for _, name := range pool {
		if name == answer || slices.Contains(distractors, name) {
			continue
		}
		distractors = append(distractors, name)
	}

	if len(distractors) < OptionCount {
		return nil, fmt.Errorf("answer pool too small: %d distractors, need %d", len(distractors), OptionCount)
	}

	r.Shuffle(len(distractors), func(i, j int) {
		distractors[i], distractors[j] = distractors[j], distractors[i]
	})

	options := slices.Clone(distractors[:OptionCount])
	options[r.IntN(OptionCount)] = answer

	return options, nil
}

// picker guards a rand.Rand, which is not safe for concurrent use.
type picker struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newPicker(r *rand.Rand) *picker {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &picker{r: r}
}

func (p *picker) question(prompt, answer string, pool []string) (Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	options, err := BuildOptions(answer, pool, p.r)
	if err != nil {
		return Question{}, err
	}

	return Question{
		Prompt:        prompt,
		CorrectAnswer: answer,
		Options:       options,
	}, nil
}

func (p *picker) intN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.r.IntN(n)
}

// APIProvider fetches quotes from a JSON endpoint returning
// [{"quote": "...", "author": "..."}].
type APIProvider struct {
	url    string
	client *http.Client
	pool   []string
	pick   *picker
}

type APIConfig struct {
	URL    string
	Client *http.Client
	Pool   []string
	Rand   *rand.Rand
}

func NewAPIProvider(c APIConfig) *APIProvider {
	p := &APIProvider{
		url:    c.URL,
		client: c.Client,
		pool:   c.Pool,
		pick:   newPicker(c.Rand),
	}
	if p.url == "" {
		p.url = DefaultQuoteURL
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: 10 * time.Second}
	}
	if p.pool == nil {
		p.pool = Speakers
	}

	return p
}

type apiQuote struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
}

func (p *APIProvider) FetchQuestion(ctx context.Context) (Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Question{}, ErrProviderUnavailable.Wrap(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Question{}, ErrProviderUnavailable.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Question{}, ErrProviderUnavailable.Wrap(fmt.Errorf("quote api: status %d", resp.StatusCode))
	}

	var quotes []apiQuote
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&quotes); err != nil {
		return Question{}, ErrProviderUnavailable.Wrap(fmt.Errorf("quote api: decode: %w", err))
	}

	if len(quotes) == 0 || quotes[0].Quote == "" || quotes[0].Author == "" {
		return Question{}, ErrProviderUnavailable.Wrap(errors.New("quote api: empty response"))
	}

	q, err := p.pick.question(strings.TrimSpace(quotes[0].Quote), strings.TrimSpace(quotes[0].Author), p.pool)
	if err != nil {
		return Question{}, ErrProviderUnavailable.Wrap(err)
	}

	return q, nil
}

// Quote is a line and the character who said it.
type Quote struct {
	Text    string
	Speaker string
}

var builtinQuotes = []Quote{
	{Text: "I am not in danger, Skyler. I am the danger.", Speaker: "Walter White"},
	{Text: "Say my name.", Speaker: "Walter White"},
	{Text: "Tread lightly.", Speaker: "Walter White"},
	{Text: "Yeah, science!", Speaker: "Jesse Pinkman"},
	{Text: "Yeah, Mr. White! Yeah, science!", Speaker: "Jesse Pinkman"},
	{Text: "Better call Saul!", Speaker: "Saul Goodman"},
	{Text: "I hide in plain sight, same as you.", Speaker: "Gustavo Fring"},
	{Text: "No more half measures, Walter.", Speaker: "Mike Ehrmantraut"},
	{Text: "Jesus, Marie, they're minerals!", Speaker: "Hank Schrader"},
	{Text: "Someone has to protect this family from the man who protects this family.", Speaker: "Skyler White"},
}

// LocalProvider serves questions from a fixed quote list.
type LocalProvider struct {
	quotes []Quote
	pool   []string
	pick   *picker
}

type LocalConfig struct {
	Quotes []Quote
	Pool   []string
	Rand   *rand.Rand
}

func NewLocalProvider(c LocalConfig) *LocalProvider {
	p := &LocalProvider{
		quotes: c.Quotes,
		pool:   c.Pool,
		pick:   newPicker(c.Rand),
	}
	if p.quotes == nil {
		p.quotes = builtinQuotes
	}
	if p.pool == nil {
		p.pool = Speakers
	}

	return p
}

func (p *LocalProvider) FetchQuestion(ctx context.Context) (Question, error) {
	if err := ctx.Err(); err != nil {
		return Question{}, ErrProviderUnavailable.Wrap(err)
	}
	if len(p.quotes) == 0 {
		return Question{}, ErrProviderUnavailable.Wrap(errors.New("no quotes configured"))
	}

	quote := p.quotes[p.pick.intN(len(p.quotes))]

	q, err := p.pick.question(quote.Text, quote.Speaker, p.pool)
	if err != nil {
		return Question{}, ErrProviderUnavailable.Wrap(err)
	}

	return q, nil
}

// RetryProvider retries a failing provider a bounded number of times.
type RetryProvider struct {
	next     Provider
	attempts uint
	delay    time.Duration
	notify   func(err error, next time.Duration)
}

type RetryConfig struct {
	Provider Provider
	// Attempts is the total number of tries, including the first.
	Attempts uint
	Delay    time.Duration
	Notify   func(err error, next time.Duration)
}

func NewRetryProvider(c RetryConfig) *RetryProvider {
	p := &RetryProvider{
		next:     c.Provider,
		attempts: c.Attempts,
		delay:    c.Delay,
		notify:   c.Notify,
	}
	if p.attempts == 0 {
		p.attempts = 1
	}

	return p
}

func (p *RetryProvider) FetchQuestion(ctx context.Context) (Question, error) {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.delay)),
		backoff.WithMaxTries(p.attempts),
	}
	if p.notify != nil {
		opts = append(opts, backoff.WithNotify(p.notify))
	}

	q, err := backoff.Retry(ctx, func() (Question, error) {
		return p.next.FetchQuestion(ctx)
	}, opts...)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			return Question{}, err
		}
		return Question{}, ErrProviderUnavailable.Wrap(err)
	}

	return q, nil
}
