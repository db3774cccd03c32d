package notify

import "fmt"

func emailBody(event Event) string {
	return fmt.Sprintf(`<html><body>
<h2>Watch milestone reached</h2>
<p><strong>%s</strong> (%s) has watched <strong>%.0f%%</strong> of <strong>%s</strong>.</p>
<p style="color:#888;font-size:12px">Video ID: %s</p>
</body></html>`,
		viewerLabel(event), event.ViewerEmail, event.WatchPercent, videoLabel(event), event.VideoID)
}

// teamsCard builds the Adaptive Card envelope Teams incoming webhooks expect.
func teamsCard(event Event) map[string]any {
	return map[string]any{
		"type": "message",
		"attachments": []map[string]any{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content": map[string]any{
					"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
					"type":    "AdaptiveCard",
					"version": "1.4",
					"body": []map[string]any{
						{
							"type":   "TextBlock",
							"size":   "Medium",
							"weight": "Bolder",
							"text":   "Watch milestone reached",
						},
						{
							"type": "TextBlock",
							"text": fmt.Sprintf("%s watched %.0f%% of %s", viewerLabel(event), event.WatchPercent, videoLabel(event)),
							"wrap": true,
						},
						{
							"type": "FactSet",
							"facts": []map[string]any{
								{"title": "Viewer", "value": event.ViewerEmail},
								{"title": "Video", "value": videoLabel(event)},
								{"title": "Progress", "value": fmt.Sprintf("%.0f%%", event.WatchPercent)},
							},
						},
					},
				},
			},
		},
	}
}

// slackMessage builds a Block Kit payload for Slack incoming webhooks.
func slackMessage(event Event) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": "Watch milestone reached",
				},
			},
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*%s* (%s) watched *%.0f%%* of *%s*",
						viewerLabel(event), event.ViewerEmail, event.WatchPercent, videoLabel(event)),
				},
			},
		},
	}
}
