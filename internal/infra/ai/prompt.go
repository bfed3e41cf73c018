package ai

// Prompt asks a vision model for the JSON document ParseResponse understands.
const Prompt = `Analyze this image and return a JSON object with the following fields:

{
  "title": "A concise, SEO-optimized title for this image (max 60 characters)",
  "description": "An engaging SEO meta description of this image (max 254 characters)",
  "tags": ["keyword1", "keyword2", "keyword3", "keyword4", "keyword5"],
  "gps": { "latitude": 0.0, "longitude": 0.0 },
  "subject": ["identified subject 1", "identified subject 2"]
}

Rules:
- "title": A short, catchy SEO title. Max 60 characters. Think of it as a headline.
- "description": A detailed, descriptive paragraph about the image content, scene, mood, colors, and context. Write it as a full sentence or two, like an image caption in a magazine. Max 254 characters.
- "tags": 5-10 relevant SEO keywords/tags for the image.
- "gps": If you can identify a specific, well-known location in the image, provide GPS coordinates. If unsure or the location is not identifiable, set to null.
- "subject": If you can identify specific known people, bird species, animal species, landmarks, or other notable subjects, list them. If none are identifiable, set to null.

Return ONLY the JSON object, no markdown formatting, no code blocks, no extra text.`

// systemPrompt is sent by backends that accept a separate system role.
const systemPrompt = "You are an image analysis assistant. You MUST respond with valid JSON only. No markdown, no code blocks, no extra text. All string values MUST be enclosed in double quotes."
