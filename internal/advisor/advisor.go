// Package advisor wraps the Gemini API behind two operations: proposing a
// daily candidate watchlist from news, and proposing the next portfolio.
// Both replies are untrusted input; every consumer goes through the lenient
// parsers in this package and falls back to empty results on bad output.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

// fallbackModels are tried in order after the configured model fails.
var fallbackModels = []string{"gemini-2.5-flash", "gemini-1.5-flash"}

// Advisor calls Gemini for candidate generation and portfolio proposals.
type Advisor struct {
	client    *genai.Client
	newsModel string
	pickModel string
	now       func() time.Time
}

// New creates an Advisor. An empty apiKey lets the client resolve
// credentials from the environment.
func New(ctx context.Context, apiKey, newsModel, pickModel string) (*Advisor, error) {
	var cc *genai.ClientConfig
	if apiKey != "" {
		cc = &genai.ClientConfig{APIKey: apiKey}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Advisor{client: client, newsModel: newsModel, pickModel: pickModel, now: time.Now}, nil
}

// Candidates asks the model to scan today's news and nominate ten Taiwan
// tickers. Returns the news summary, the hot theme keywords and the raw
// candidate list.
func (a *Advisor) Candidates(ctx context.Context) (string, []string, []models.Candidate, error) {
	prompt := fmt.Sprintf(`你是一位台灣股市的專業分析師。請使用「繁體中文」回答。
任務：廣泛搜尋今日 (%s) 的「全球」與「台灣」財經新聞，找出市場的「資金流向」與「熱門題材」。
重點關注：
1. 美股重要指數與權值股表現 (Nasdaq, 費半 SOX, NVIDIA, Apple, AMD, 台積電 ADR)。
2. 總體經濟指標 (Fed 利率決策, CPI, 美債殖利率)。
3. 台灣本地熱門題材 (法說會, 營收公布, 產業動態)。
綜合上述國際與國內資訊，選出 10 檔最值得關注的台灣股票。
輸出格式：僅限 JSON。
{
  "newsSummary": "新聞摘要...",
  "themes": ["航運", "AI伺服器"],
  "candidates": [ { "code": "2330", "name": "台積電", "price": 1000, "reason": "...", "industry": "..." } ]
}`, a.now().Format("2006-01-02"))

	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	text, err := a.generate(ctx, a.newsModel, prompt, cfg)
	if err != nil {
		return "", nil, nil, fmt.Errorf("candidate generation: %w", err)
	}

	summary, themes, candidates := ParseCandidates([]byte(ExtractJSON(text)))
	log.Printf("[Advisor] model proposed %d candidates across %d themes", len(candidates), len(themes))
	return summary, themes, candidates, nil
}

// Propose asks the model to rebalance: given the current book and the
// screened watchlist, return the next portfolio of at most five names. The
// reply is advisory; the reconciler enforces every hard rule afterwards.
func (a *Advisor) Propose(ctx context.Context, newsSummary string, current []models.Position, watchlist []models.ScreenedCandidate) ([]models.ProposedEntry, error) {
	currentJSON, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encoding current portfolio: %w", err)
	}
	watchlistJSON, err := json.Marshal(watchlist)
	if err != nil {
		return nil, fmt.Errorf("encoding watchlist: %w", err)
	}

	prompt := fmt.Sprintf(`你是一位專業的基金經理人，負責管理一個「最多持股 5 檔」的台股投資組合。
請使用「繁體中文」回答。

市場概況：%s

【目前持倉 (Current Portfolio)】：
%s

【今日觀察名單 (New Candidates)】：
%s

【決策任務】：
1. 檢視「目前持倉」與「今日觀察名單」。
2. 決定是否要「賣出」(剔除) 表現不佳或前景轉弱的持股。
3. 決定是否要「買入」潛力新股 (若空間不足，需先賣出)。
4. **嚴格遵守**：總持股數量不得超過 5 檔。

【選股邏輯】：
- 優先保留強勢股 (獲利中、趨勢向上)。
- 優先剔除弱勢股 (虧損擴大、技術面轉空)。
- 新買入股票必須有極強的技術面或基本面理由。
- **請給出具體的技術分析理由、基本面理由以及進出場策略。**

【輸出格式】：僅限 JSON 陣列 (最終的 0~5 檔持股)。
[
  { "code": "2330", "name": "台積電", "entryPrice": 500, "reason": "續抱...理由...", "industry": "...", "status": "HOLD" },
  { "code": "2454", "name": "聯發科", "entryPrice": 0, "reason": "新納入...理由...", "industry": "...", "status": "BUY" }
]`, newsSummary, currentJSON, watchlistJSON)

	text, err := a.generate(ctx, a.pickModel, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("portfolio proposal: %w", err)
	}

	proposal := ParseProposal([]byte(ExtractJSON(text)))
	log.Printf("[Advisor] model proposed %d positions", len(proposal))
	return proposal, nil
}

// generate runs one prompt against the model, falling back through the
// known-good model list when the preferred one errors.
func (a *Advisor) generate(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	tries := append([]string{model}, fallbackModels...)
	var lastErr error
	for _, m := range tries {
		if m == "" {
			continue
		}
		resp, err := a.client.Models.GenerateContent(ctx, m, genai.Text(prompt), cfg)
		if err != nil {
			log.Printf("[Advisor] model %s failed, trying next: %v", m, err)
			lastErr = err
			continue
		}
		return resp.Text(), nil
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}
