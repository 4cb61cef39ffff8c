package guardrails

// Defaults compilados; cada lista puede extenderse via configuracion
// sin redeploy de codigo (se concatenan, nunca se reemplazan).

var defaultInjectionPatterns = []string{
	`ignore (previous|above).*instructions`,
	`disregard (previous|above).*instructions`,
	`forget (your|the) instructions`,
	`follow these new instructions`,
	`reveal (the|your).*(prompt|instructions)`,
	`<script>`,
}

var defaultOffTopicKeywords = []string{
	"joke", "funny", "story", "meme", "laugh", "riddle",
	"travel", "passport", "vacation", "holiday", "flight", "visa",
	"recipe", "sports", "weather", "movie",
}

var defaultProhibitedPatterns = []string{
	`open the database`,
	`delete records`,
	`expose.*credentials`,
	`access.*internal systems`,
}

var defaultHighRiskKeywords = []string{
	"transfer", "send money", "wire", "delete account", "close account",
}
