package scrape

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// desktopUserAgent はヘッドレス判定を避けるための固定デスクトップUA。
const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ChromeLauncher はchromedpでヘッドレスChromeを起動するBrowserLauncher。
type ChromeLauncher struct {
	// ExecPath が空の場合はchromedpの探索に任せる。
	ExecPath string
}

// NewChromeLauncher はChromeLauncherを生成する。
func NewChromeLauncher(execPath string) *ChromeLauncher {
	return &ChromeLauncher{ExecPath: execPath}
}

// Launch はブラウザプロセスを起動する。
// ブラウザの寿命はリクエストのコンテキストではなくClose呼び出しで管理する。
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent(desktopUserAgent),
	)
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// 最初のRunでブラウザプロセスが起動する。
	// このRunのコンテキストがプロセスの寿命になるため、タイムアウトを付けない。
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &ChromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
	}, nil
}

// ChromeBrowser はchromedpで起動したブラウザ1つを表す。
type ChromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewPage は新しいタブを開く。
func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, err
	}
	return &chromePage{ctx: tabCtx, cancel: tabCancel}, nil
}

// Close はブラウザプロセスを終了する。
func (b *ChromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	return err
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return runWithCaller(ctx, p.ctx, chromedp.Navigate(url))
}

func (p *chromePage) HasElement(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	if err := runWithCaller(ctx, p.ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	var ok bool
	return runWithCaller(ctx, p.ctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); true`, &ok))
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return runWithCaller(ctx, p.ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := runWithCaller(ctx, p.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}

// runWithCaller はchromedpのコンテキスト上でactionsを実行する。
// 呼び出し側のデッドラインとキャンセルを引き継ぐ。
func runWithCaller(caller, target context.Context, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if dl, ok := caller.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(target, dl)
	} else {
		runCtx, cancel = context.WithCancel(target)
	}
	defer cancel()
	stop := context.AfterFunc(caller, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if caller.Err() != nil {
			return caller.Err()
		}
		return err
	}
	return nil
}
