// Package telegram implements the channel.telegram module: it delivers
// job notifications through the Telegram Bot API.
//
// Targets are chat IDs ("-1001234567890") or public channel usernames
// ("@sitewatch_feed"). Message text is converted to MarkdownV2, split at
// line boundaries to fit max_message_length, and sent one chunk at a time
// behind a shared rate limiter. 429 responses are retried using the
// retry_after hint returned by the API.
//
// The module talks to the Bot API with net/http and encoding/json.
package telegram
