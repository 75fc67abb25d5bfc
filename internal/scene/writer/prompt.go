package writer

import "fmt"

// Temperature used for every screenplay request.
const Temperature float32 = 0.8

// SystemInstruction fixes the style of every generated scene.
const SystemInstruction = `You are an award-winning Hollywood Screenwriter.
Your task is to take a user's "Plot Twist" and write a SHORT, INTENSE movie scene (max 150 words).

Formatting Rules:
1. Use standard Screenplay format.
2. SCENE HEADING must be in ALL CAPS (e.g., INT. WAREHOUSE - NIGHT).
3. Character names must be CENTERED and ALL CAPS.
4. Dialogue must be CENTERED.
5. Keep it dramatic, moody, and cinematic.
6. Do NOT include markdown. Raw text only.

The scene should immediately reflect the consequences of the plot twist.`

// UserContent embeds the plot twist in the scene brief.
func UserContent(prompt string) string {
	return fmt.Sprintf(`The current scene is a tense noir thriller.
PLOT TWIST: %s

Write the scene now.`, prompt)
}

// NewRequest builds the request for a plot twist.
func NewRequest(apiKey, prompt string) Request {
	return Request{
		APIKey:            apiKey,
		SystemInstruction: SystemInstruction,
		UserContent:       UserContent(prompt),
		Temperature:       Temperature,
	}
}
