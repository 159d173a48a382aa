package policy

// Default group keys.
const (
	GroupAI            = "AI"
	GroupSocialMedia   = "SocialMedia"
	GroupEntertainment = "Entertainment"
	GroupNews          = "News"
	GroupShopping      = "Shopping"
	GroupEmail         = "Email"

	// GroupCustom receives migrated legacy blockedDomains.
	GroupCustom = "Custom"
)

// NewAIGroup blocks AI chat assistants.
func NewAIGroup() GroupPolicy {
	return NewStaticGroup(GroupAI, false,
		"chat.openai.com", "claude.ai", "perplexity.ai", "poe.com", "gemini.google.com",
	)
}

// NewSocialMediaGroup blocks social networks and messengers.
func NewSocialMediaGroup() GroupPolicy {
	return NewStaticGroup(GroupSocialMedia, false,
		"facebook.com", "instagram.com", "tiktok.com", "web.whatsapp.com", "messenger.com",
		"web.telegram.org", "x.com", "reddit.com", "discord.com", "snapchat.com",
		"pinterest.com", "linkedin.com", "threads.net", "wechat.com", "qq.com",
		"vk.com", "line.me", "tumblr.com",
	)
}

// NewEntertainmentGroup blocks video and music streaming.
func NewEntertainmentGroup() GroupPolicy {
	return NewStaticGroup(GroupEntertainment, false,
		"youtube.com", "netflix.com", "twitch.tv", "primevideo.com", "disneyplus.com",
		"hulu.com", "vimeo.com", "soundcloud.com", "spotify.com", "crunchyroll.com",
		"hbomax.com", "tv.apple.com",
	)
}

// NewNewsGroup blocks news outlets.
func NewNewsGroup() GroupPolicy {
	return NewStaticGroup(GroupNews, false,
		"cnn.com", "bbc.com", "nytimes.com", "theguardian.com", "washingtonpost.com",
		"wsj.com", "bloomberg.com", "reuters.com", "foxnews.com", "nbcnews.com",
		"cnbc.com", "abcnews.go.com", "apnews.com", "aljazeera.com",
	)
}

// NewShoppingGroup blocks online stores.
func NewShoppingGroup() GroupPolicy {
	return NewStaticGroup(GroupShopping, false,
		"amazon.com", "ebay.com", "walmart.com", "bestbuy.com", "shopee.vn",
		"lazada.vn", "taobao.com", "aliexpress.com", "etsy.com", "target.com",
	)
}

// NewEmailGroup blocks webmail.
func NewEmailGroup() GroupPolicy {
	return NewStaticGroup(GroupEmail, false,
		"mail.google.com", "outlook.com", "mail.yahoo.com", "proton.me",
	)
}
