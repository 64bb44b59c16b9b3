package knowledge

// DefaultPipelines returns the built-in studio corpus. Operator corpus files
// extend or override these at load time.
func DefaultPipelines() []Pipeline {
	return []Pipeline{
		{
			Name:          PipelineTattoo,
			MinConfidence: 0.2,
			Triggers:      []string{"tattoo", "ink", "design", "style", "aftercare"},
			Entries: []Entry{
				{
					Patterns: []string{"aftercare", "how do i take care of my tattoo", "healing"},
					Keywords: []string{"aftercare", "healing", "heal", "care", "lotion", "peeling"},
					Answer: "Keep the tattoo clean and moisturized: wash gently twice a day, " +
						"apply a thin layer of unscented lotion, and stay out of pools and " +
						"direct sun for two weeks. Light peeling is normal.",
					Metadata: map[string]string{"topic": "aftercare"},
				},
				{
					Patterns: []string{"does it hurt", "how painful", "pain"},
					Keywords: []string{"hurt", "pain", "painful", "sore"},
					Answer: "Pain varies by placement. Ribs, feet, and inner arm are the most " +
						"sensitive; outer arm, calf, and shoulder are the easiest. Most clients " +
						"describe it as a constant scratching feeling.",
					Metadata: map[string]string{"topic": "pain"},
				},
				{
					Patterns: []string{"what styles do you do", "style", "fine line", "traditional"},
					Keywords: []string{"style", "styles", "blackwork", "fine", "line", "traditional", "realism", "watercolor"},
					Answer: "Our artists cover American traditional, fine line, blackwork, " +
						"realism, and watercolor. Check each artist's portfolio to match your idea " +
						"with the right specialist.",
					Metadata: map[string]string{"topic": "styles"},
				},
				{
					Patterns: []string{"touch up", "my tattoo faded", "rework an old tattoo"},
					Keywords: []string{"touch", "fade", "faded", "rework", "cover", "coverup"},
					Answer: "We do free touch-ups within six months of the original session. " +
						"For older pieces or cover-ups, book a consultation so an artist can " +
						"assess the existing work first.",
					Metadata: map[string]string{"topic": "touchup"},
				},
			},
		},
		{
			Name:          PipelineCustomerService,
			MinConfidence: 0.2,
			Triggers:      []string{"appointment", "book", "booking", "open", "hours", "cancel", "reschedule"},
			Entries: []Entry{
				{
					Patterns: []string{"when are you open", "open", "hours", "what time do you close"},
					Keywords: []string{"open", "hours", "close", "time", "today", "weekend"},
					Answer: "We're open Tuesday through Saturday, 11am to 8pm. Walk-ins are " +
						"welcome after 2pm, subject to artist availability.",
					Metadata: map[string]string{"topic": "hours"},
				},
				{
					Patterns: []string{"how do i book", "book an appointment", "appointment"},
					Keywords: []string{"book", "booking", "appointment", "schedule", "consultation"},
					Answer: "You can book through the booking page or by messaging us here with " +
						"your idea, preferred artist, and availability. A deposit confirms the slot.",
					Metadata: map[string]string{"topic": "booking"},
				},
				{
					Patterns: []string{"cancel my appointment", "reschedule", "change my booking"},
					Keywords: []string{"cancel", "reschedule", "change", "move", "booking"},
					Answer: "You can reschedule up to 48 hours before your appointment and keep " +
						"your deposit. Cancellations inside 48 hours forfeit the deposit.",
					Metadata: map[string]string{"topic": "cancellation"},
				},
				{
					Patterns: []string{"where are you located", "address", "parking"},
					Keywords: []string{"located", "location", "address", "find", "parking", "directions"},
					Answer: "We're at 214 Harbor Street, two blocks from the central station. " +
						"Street parking is free after 6pm.",
					Metadata: map[string]string{"topic": "location"},
				},
			},
		},
		{
			Name:          PipelineSales,
			MinConfidence: 0.2,
			Triggers:      []string{"price", "cost", "much", "deposit", "quote", "payment"},
			Entries: []Entry{
				{
					Patterns: []string{"how much", "price", "what does it cost", "how much for a sleeve"},
					Keywords: []string{"much", "price", "cost", "pricing", "sleeve", "quote", "estimate"},
					Answer: "Pricing depends on size, detail, and placement. Small pieces start " +
						"at $120, half sleeves typically run $600-$1200, and full sleeves are " +
						"quoted per project after a consultation.",
					Metadata: map[string]string{"topic": "pricing"},
				},
				{
					Patterns: []string{"deposit", "do i pay upfront"},
					Keywords: []string{"deposit", "upfront", "pay", "hold"},
					Answer: "A $50 deposit secures your appointment and comes off the final " +
						"price. Deposits are refundable up to 48 hours before the session.",
					Metadata: map[string]string{"topic": "deposit"},
				},
				{
					Patterns: []string{"payment", "do you take card", "payment plans"},
					Keywords: []string{"payment", "card", "cash", "plan", "installments"},
					Answer: "We take card, cash, and contactless. Larger projects can be split " +
						"across sessions so you pay per sitting.",
					Metadata: map[string]string{"topic": "payment"},
				},
				{
					Patterns: []string{"gift card", "voucher"},
					Keywords: []string{"gift", "card", "voucher", "certificate"},
					Answer: "Gift cards are available in any amount at the front desk or online, " +
						"and they never expire.",
					Metadata: map[string]string{"topic": "giftcard"},
				},
			},
		},
		{
			Name:          PipelineConversation,
			MinConfidence: 0.2,
			Triggers:      []string{"hello", "hi", "hey", "thanks", "bye"},
			Entries: []Entry{
				{
					Patterns: []string{"hello", "hi", "hey there", "good morning"},
					Keywords: []string{"hello", "hi", "hey", "morning", "afternoon"},
					Answer:   "Hey! Welcome to the studio. Ask me about booking, pricing, styles, or aftercare.",
					Metadata: map[string]string{"topic": "greeting"},
				},
				{
					Patterns: []string{"thanks", "thank you"},
					Keywords: []string{"thanks", "thank", "appreciate"},
					Answer:   "Anytime! Let me know if there's anything else.",
					Metadata: map[string]string{"topic": "thanks"},
				},
				{
					Patterns: []string{"bye", "goodbye", "see you"},
					Keywords: []string{"bye", "goodbye", "later"},
					Answer:   "See you around - and good luck with the new ink!",
					Metadata: map[string]string{"topic": "farewell"},
				},
			},
		},
		{
			Name:          PipelineAnalytics,
			MinConfidence: 0.25,
			Triggers:      []string{"stats", "report", "analytics", "usage"},
			Entries: []Entry{
				{
					Patterns: []string{"show me my stats", "usage report", "analytics"},
					Keywords: []string{"stats", "statistics", "report", "analytics", "usage", "dashboard"},
					Answer: "Your usage dashboard with booking trends and chat volume is under " +
						"Account > Analytics. Reports can be exported as CSV.",
					Metadata: map[string]string{"topic": "dashboard"},
				},
				{
					Patterns: []string{"how many queries", "quota", "plan limits"},
					Keywords: []string{"quota", "limit", "limits", "queries", "plan", "billing"},
					Answer: "Query quotas reset monthly and depend on your plan tier. The " +
						"current count is shown at the top of the analytics page.",
					Metadata: map[string]string{"topic": "quota"},
				},
			},
		},
	}
}
