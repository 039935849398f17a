// Command verifyrace submits one OTP code from many goroutines at once and
// reports how many submissions were accepted. A healthy server accepts exactly one.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
)

type options struct {
	BaseURL string
	Address string
	Purpose string
	Code    string
	Workers int
	Timeout time.Duration
	Request bool
}

type verifyRequest struct {
	Address string `json:"address"`
	Purpose string `json:"purpose"`
	Code    string `json:"code"`
}

// ==============================================
// METRICS
// ==============================================

type result struct {
	accepted int64
	rejected int64
	other    int64
	errors   int64
	elapsed  time.Duration
}

func (r result) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 48) + "\n")
	b.WriteString("VERIFY RACE RESULTS\n")
	b.WriteString(strings.Repeat("=", 48) + "\n")
	fmt.Fprintf(&b, "Accepted (200):     %d\n", r.accepted)
	fmt.Fprintf(&b, "Rejected (401):     %d\n", r.rejected)
	fmt.Fprintf(&b, "Other status:       %d\n", r.other)
	fmt.Fprintf(&b, "Transport errors:   %d\n", r.errors)
	fmt.Fprintf(&b, "Elapsed:            %s\n", r.elapsed.Round(time.Millisecond))
	return b.String()
}

// ==============================================
// RACE
// ==============================================

func requestCode(ctx context.Context, client *http.Client, opts options) error {
	body, _ := json.Marshal(map[string]string{"address": opts.Address, "purpose": opts.Purpose})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.BaseURL+"/auth/otp/request", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("code request failed: %d %s", resp.StatusCode, msg)
	}
	return nil
}

// race fires opts.Workers verify calls released by one barrier.
func race(ctx context.Context, client *http.Client, opts options) result {
	var res result
	payload, _ := json.Marshal(verifyRequest{Address: opts.Address, Purpose: opts.Purpose, Code: opts.Code})

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(opts.Workers)

	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer wg.Done()
			<-start

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.BaseURL+"/auth/otp/verify", bytes.NewReader(payload))
			if err != nil {
				atomic.AddInt64(&res.errors, 1)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Request-ID", uuid.NewString())

			resp, err := client.Do(req)
			if err != nil {
				atomic.AddInt64(&res.errors, 1)
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				atomic.AddInt64(&res.accepted, 1)
			case http.StatusUnauthorized:
				atomic.AddInt64(&res.rejected, 1)
			default:
				atomic.AddInt64(&res.other, 1)
			}
		}()
	}

	began := time.Now()
	close(start)
	wg.Wait()
	res.elapsed = time.Since(began)

	return res
}

func parseOptions(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("verifyrace", flag.ContinueOnError)
	fs.StringVar(&opts.BaseURL, "base-url", "http://localhost:8080/api/v1", "API base URL")
	fs.StringVarP(&opts.Address, "address", "a", "", "email address the code was issued for")
	fs.StringVarP(&opts.Purpose, "purpose", "p", "login", "code purpose (login or registration)")
	fs.StringVarP(&opts.Code, "code", "c", "", "code to submit")
	fs.IntVarP(&opts.Workers, "workers", "n", 50, "concurrent submissions")
	fs.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "overall deadline")
	fs.BoolVar(&opts.Request, "request", false, "request a fresh code first, then exit so it can be read from the mail log")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Address == "" {
		return opts, errors.New("--address is required")
	}
	if !opts.Request && opts.Code == "" {
		return opts, errors.New("--code is required unless --request is set")
	}
	if opts.Workers < 2 {
		return opts, errors.New("--workers must be at least 2")
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "verifyrace:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	client := &http.Client{
		Transport: &http.Transport{MaxIdleConnsPerHost: opts.Workers},
	}

	if opts.Request {
		if err := requestCode(ctx, client, opts); err != nil {
			fmt.Fprintln(os.Stderr, "verifyrace:", err)
			os.Exit(1)
		}
		fmt.Printf("Code requested for %s (%s)\n", opts.Address, opts.Purpose)
		return
	}

	res := race(ctx, client, opts)
	fmt.Print(res)

	if res.accepted != 1 {
		fmt.Fprintf(os.Stderr, "verifyrace: expected exactly one accepted submission, got %d\n", res.accepted)
		os.Exit(1)
	}
}
