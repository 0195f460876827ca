// Package cmd defines the pagewatch CLI.
//
// Architecture overview:
//   - One invocation of `pagewatch run` fetches a single page with colly, extracts its visible text with goquery
//     (scoped to the first element matching target.selector when it matches), normalizes it and compares it with
//     previous.txt in the data directory.
//   - A changed page produces an HTML report (html/template) with a unified diff (go-difflib), sent as a
//     multipart/alternative message over SMTP with mandatory STARTTLS and PLAIN auth. An unchanged page sends nothing.
//   - The normalized text then overwrites previous.txt and current.txt, and an entry is appended to logs.json.
//     Fetch and send failures are appended as scrape_error / email_error entries and exit 1.
//   - Optional mirrors: snapshots to GCS, run-log entries to Postgres, change events to Pub/Sub and a Prometheus
//     textfile for node_exporter. A mirror failure is logged and never fails the run.
//
// Operational notes:
//   - There is no scheduler; run the binary from cron, a Kubernetes CronJob or Cloud Scheduler.
//   - Only one run may use a data directory at a time. Nothing is locked, so overlapping runs can corrupt
//     previous.txt or logs.json.
//   - Configuration comes from an optional YAML file (--config) and the environment (PAGEWATCH_* plus the legacy
//     TARGET_URL, EMAIL_TO, SMTP_HOST, ... names). Logs go to stderr; `diff` and `history` write to stdout.
package cmd
