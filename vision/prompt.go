package vision

// analysisPrompt is sent with every frame. The model must answer with a single
// JSON object using exactly these snake_case keys; anything else is handled by
// the lenient parser.
const analysisPrompt = `You are analyzing a single frame from a gameplay recording.
Look at the image and answer with ONLY a JSON object, no prose, using exactly these keys:

{
  "kill_log": boolean,        // is a kill-feed entry visible
  "kill_count": integer,      // kills attributable to the player in this frame
  "match_status": string,     // one of: normal, clutch, victory, defeat, overtime, unknown
  "action_intensity": string, // one of: very_high, high, medium, low
  "enemy_visible": boolean,   // is at least one enemy on screen
  "enemy_count": integer,     // number of visible enemies
  "visual_quality": string,   // one of: cinematic, high, normal, low
  "scene_description": string,// one short sentence describing the scene
  "ui_elements": string,      // notable HUD or UI elements
  "confidence": number        // 0.0 to 1.0, your confidence in this analysis
}`
