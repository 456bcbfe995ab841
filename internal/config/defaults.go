package config

import (
	"time"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/scoring"
)

var defaultEntities = []string{
	"Corn", "Corn2", "Curvance", "Darkbright", "Fabric", "Caldera", "Open Eden",
	"XAI", "Espresso", "2046 Angels Ltd", "Clique", "TreasureDAO", "Camelot",
	"DuckChain", "Spacecoin", "FhenixToken", "USD.ai", "Huddle01", "Succinct",
}

var defaultPhrases = []string{
	"TGE", "token generation event", "token launch", "token release",
	"token distribution", "airdrop", "token sale", "ICO", "IDO",
	"token listing", "token launch date", "token generation",
	"token deployment", "token minting", "token creation",
}

var defaultFeeds = []string{
	"https://decrypt.co/feed",
	"https://www.theblock.co/rss.xml",
	"https://www.coindesk.com/arc/outboundfeeds/rss/",
	"https://www.coindesk.com/arc/outboundfeeds/rss/category/ethereum/",
	"https://decrypt.co/tag/ethereum/feed",
	"https://thedefiant.io/feed",
	"https://www.bankless.com/feed",
	"https://dlnews.com/feed",
	"https://blog.ethereum.org/feed",
	"https://blog.optimism.io/feed",
	"https://blog.polygon.technology/rss.xml",
	"https://arbitrumfoundation.medium.com/feed",
	"https://medium.com/avalancheavax/feed",
	"https://fantom.foundation/blog/feed/",
	"https://blog.cronos.org/feed/",
	"https://medium.com/feed/@harmonyprotocol",
	"https://moonbeam.network/blog/feed/",
	"https://medium.com/feed/@klaytn_official",
	"https://medium.com/feed/@CeloOrg",
	"https://medium.com/feed/@AstarNetwork",
	"https://metisdao.medium.com/feed",
	"https://syscoin.org/news/feed/",
	"https://medium.com/feed/@telosfoundation",
}

// Project accounts first, then news outlets and ecosystem accounts.
var defaultAccounts = []string{
	"@CurvanceFinance", "@fabric_xyz", "@CalderaXYZ", "@OpenEden_HQ", "@XaiGames",
	"@EspressoSys", "@Treasure_DAO", "@CamelotDEX", "@FhenixIO", "@huddle01",
	"@SuccinctLabs",
	"@decryptmedia", "@CoinDesk", "@TheBlock__", "@DefiantNews", "@BanklessHQ",
	"@DLNewsInfo",
	"@ethereum", "@VitalikButerin", "@ethdotorg", "@0xPolygon", "@arbitrum",
	"@optimismPBC", "@avax", "@FantomFDN", "@cronos_chain", "@harmonyprotocol",
	"@MoonbeamNetwork", "@klaytn_official", "@CeloOrg", "@AstarNetwork",
	"@MetisDAO", "@syscoin", "@HelloTelos",
	"@PatrickAlphaC", "@VittoStack", "@thatguyintech", "@iam_preethi", "@dabit3",
	"@oliverjumpertz", "@austingriffith", "@sandeepnailwal", "@el33th4xor",
	"@michaelfkong", "@OffchainLabs", "@kelvinfichter",
}

func defaultConfig() Config {
	sc := scoring.DefaultConfig()
	limits := domain.DefaultLimits()
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Monitor: MonitorConfig{
			Interval:        30 * time.Minute,
			RecencyHours:    24,
			CycleRetries:    2,
			CycleRetryDelay: 30 * time.Second,
			SummaryHour:     9,
			ShutdownGrace:   2 * time.Minute,
		},
		Tracking: TrackingConfig{
			Entities: append([]string(nil), defaultEntities...),
			Phrases:  append([]string(nil), defaultPhrases...),
		},
		Feeds: FeedsConfig{
			URLs:            append([]string(nil), defaultFeeds...),
			Fallbacks:       map[string]string{},
			Pacing:          time.Second,
			Timeout:         30 * time.Second,
			Retry:           RetryConfig{Attempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Minute,
			ArticlePacing:   time.Second,
		},
		Social: SocialConfig{
			BaseURL:     "https://api.twitter.com/2",
			Accounts:    append([]string(nil), defaultAccounts...),
			MaxResults:  10,
			MaxEntities: 10,
			MaxPhrases:  5,
			Pacing:      time.Second,
			Timeout:     30 * time.Second,
			Retry:       RetryConfig{Attempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
		},
		Scoring: ScoringConfig{
			Threshold:            sc.Threshold,
			SentimentBoost:       sc.SentimentBoost,
			SentimentMinPolarity: sc.SentimentMinPolarity,
			UrgencyWords:         sc.UrgencyWords,
			UrgencyIncrement:     sc.UrgencyIncrement,
			UrgencyCap:           sc.UrgencyCap,
			Feed:                 scoring.DefaultFeedWeights(),
			Social:               scoring.DefaultSocialWeights(),
		},
		Sentiment: SentimentConfig{
			Lexicon:     true,
			EnglishOnly: true,
			Timeout:     10 * time.Second,
		},
		State: StateConfig{
			Driver:          DriverFile,
			Path:            "data/state.json",
			MaxHistory:      limits.MaxHistory,
			MaxProcessedIDs: limits.MaxProcessedIDs,
			MaxSeenHashes:   limits.MaxSeenHashes,
		},
		Notifications: NotificationConfig{
			Email: EmailConfig{Host: "smtp.gmail.com", Port: 587},
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}
