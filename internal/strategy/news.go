package strategy

import (
	"fmt"
	"strings"

	"alphabot/internal/broker"
	"alphabot/internal/market"
)

// Finance-specific term weights. Matching is substring-based over the
// lowercased headline+summary, so multi-word phrases work as written.
var bullishTerms = map[string]float64{
	"beat": 3, "beats": 3, "record": 2, "record high": 3,
	"raised guidance": 3, "upgrade": 2, "buy rating": 2,
	"strong earnings": 3, "revenue growth": 2, "profit surge": 3,
	"acquisition": 1, "buyback": 2, "dividend increase": 2,
	"positive": 1, "growth": 1, "bullish": 2, "outperform": 2,
	"breakthrough": 2, "approval": 2, "fda approved": 3,
	"partnership": 1, "deal": 1, "contract": 1,
}

var bearishTerms = map[string]float64{
	"miss": 3, "misses": 3, "below expectations": 3,
	"lowered guidance": 3, "downgrade": 2, "sell rating": 2,
	"revenue decline": 2, "profit drop": 3, "layoffs": 2,
	"investigation": 2, "lawsuit": 2, "recall": 2,
	"negative": 1, "bearish": 2, "underperform": 2,
	"loss": 2, "debt": 1, "bankruptcy": 3, "default": 3,
	"warning": 2, "cut": 1,
}

// ScoreText rates one text block against the finance lexicons.
// Result is net weight over total matched weight, clipped to [-1, 1].
func ScoreText(text string) float64 {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	var score, maxScore float64
	for term, w := range bullishTerms {
		if strings.Contains(lower, term) {
			score += w
			maxScore += w
		}
	}
	for term, w := range bearishTerms {
		if strings.Contains(lower, term) {
			score -= w
			maxScore += w
		}
	}
	if maxScore == 0 {
		return 0
	}
	s := score / maxScore
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// ArticleSentiment is an aggregate over a batch of articles.
type ArticleSentiment struct {
	Score       float64
	Count       int
	TopHeadline string
}

// ScoreArticles averages the lexicon score of each article's
// headline+summary. Exposed because the earnings gate reuses it.
func ScoreArticles(articles []broker.Article) ArticleSentiment {
	if len(articles) == 0 {
		return ArticleSentiment{}
	}
	var sum float64
	for _, a := range articles {
		sum += ScoreText(a.Headline + " " + a.Summary)
	}
	return ArticleSentiment{
		Score:       sum / float64(len(articles)),
		Count:       len(articles),
		TopHeadline: articles[0].Headline,
	}
}

// PriceReaction classifies the short-term price/volume response to news.
type PriceReaction struct {
	Kind      string // strong_positive | mild_positive | strong_negative | mild_negative | neutral
	PctChange float64
	VolRatio  float64
}

// ClassifyReaction looks at the 3-bar percent change and current volume
// against its 20-bar average.
func ClassifyReaction(bars market.Series) PriceReaction {
	if bars.Len() < 5 {
		return PriceReaction{Kind: "neutral"}
	}
	change := bars.PctChange(3)
	volRatio := 1.0
	if bars.Len() >= 20 {
		vols := bars.Volumes()
		var sum float64
		for _, v := range vols[len(vols)-20:] {
			sum += v
		}
		avg := sum / 20
		if avg > 0 {
			volRatio = vols[len(vols)-1] / avg
		}
	}
	kind := "neutral"
	switch {
	case change > 1.5 && volRatio > 1.5:
		kind = "strong_positive"
	case change > 0.5:
		kind = "mild_positive"
	case change < -1.5 && volRatio > 1.5:
		kind = "strong_negative"
	case change < -0.5:
		kind = "mild_negative"
	}
	return PriceReaction{Kind: kind, PctChange: change, VolRatio: volRatio}
}

// CatalystScore rates fundamentals as an earnings catalyst in [0, 0.8].
func CatalystScore(f Fundamentals) float64 {
	if !f.Valid {
		return 0
	}
	var score float64
	if f.RevenueGrowth > 0.1 {
		score += 0.3
	}
	if f.EarningsGrowth > 0.1 {
		score += 0.3
	}
	if f.PERatio > 0 && f.PERatio < 25 {
		score += 0.2
	}
	return score
}

// NewsSentiment trades the news: net-positive coverage with a confirming
// price reaction is a BUY unless the move already ran (then it flips to a
// fade-the-news SELL).
type NewsSentiment struct {
	SentimentThreshold float64 // default 0.3
	MinArticles        int     // default 2
	MinStrength        float64 // default 0.55
}

func NewNewsSentiment() *NewsSentiment {
	return &NewsSentiment{SentimentThreshold: 0.3, MinArticles: 2, MinStrength: 0.55}
}

func (n *NewsSentiment) Name() string { return "news_sentiment" }

func (n *NewsSentiment) Score(in Input) Result {
	if len(in.Articles) == 0 {
		return hold("no recent news data")
	}

	sentiment := ScoreArticles(in.Articles)
	catalyst := CatalystScore(in.Fundamentals)
	reaction := ClassifyReaction(in.Bars)
	combined := sentiment.Score*0.6 + catalyst*0.4

	indicators := map[string]float64{
		"sentiment_score":   round2(sentiment.Score),
		"article_count":     float64(sentiment.Count),
		"earnings_catalyst": catalyst,
		"combined_score":    round2(combined),
		"pct_change":        round2(reaction.PctChange),
	}

	strongPositive := sentiment.Score >= n.SentimentThreshold && sentiment.Count >= n.MinArticles
	earningsCatalyst := catalyst >= 0.3
	priceConfirmsBuy := reaction.Kind == "strong_positive" || reaction.Kind == "mild_positive"
	// Over 3% already moved: the edge is gone, do not chase.
	notTooLate := reaction.PctChange < 3.0

	buyScore := weight(strongPositive, 3.0) +
		weight(earningsCatalyst, 2.0) +
		weight(priceConfirmsBuy, 1.5) +
		weight(notTooLate, 1.0)
	const buyMax = 7.5

	strongNegative := sentiment.Score <= -n.SentimentThreshold && sentiment.Count >= n.MinArticles
	priceConfirmsSell := reaction.Kind == "strong_negative" || reaction.Kind == "mild_negative"
	fadeTheNews := reaction.PctChange >= 3.0 && sentiment.Score > 0

	sellScore := weight(strongNegative, 3.0) +
		weight(priceConfirmsSell, 1.5) +
		weight(fadeTheNews, 2.0)
	const sellMax = 6.5

	buyStrength := buyScore / buyMax
	sellStrength := sellScore / sellMax

	if buyStrength >= n.MinStrength && buyStrength > sellStrength {
		var reasons []string
		if strongPositive {
			reasons = append(reasons, fmt.Sprintf("positive news (%d articles, score:%.2f)", sentiment.Count, sentiment.Score))
		}
		if earningsCatalyst {
			reasons = append(reasons, fmt.Sprintf("earnings catalyst (%.2f)", catalyst))
		}
		if priceConfirmsBuy {
			reasons = append(reasons, fmt.Sprintf("price up %.1f%%", reaction.PctChange))
		}
		return Result{
			Signal:     SignalBuy,
			Strength:   round2(buyStrength),
			Reason:     strings.Join(reasons, " | "),
			Indicators: indicators,
		}
	}

	if sellStrength >= n.MinStrength && sellStrength > buyStrength {
		var reasons []string
		if strongNegative {
			reasons = append(reasons, fmt.Sprintf("negative news (score:%.2f)", sentiment.Score))
		}
		if priceConfirmsSell {
			reasons = append(reasons, fmt.Sprintf("price down %.1f%%", reaction.PctChange))
		}
		if fadeTheNews {
			reasons = append(reasons, "fading the news (buy rumor/sell news)")
		}
		return Result{
			Signal:     SignalSell,
			Strength:   round2(sellStrength),
			Reason:     strings.Join(reasons, " | "),
			Indicators: indicators,
		}
	}

	return hold(fmt.Sprintf("neutral news | score:%.2f articles:%d | buy:%.0f%% sell:%.0f%%",
		sentiment.Score, sentiment.Count, buyStrength*100, sellStrength*100))
}
