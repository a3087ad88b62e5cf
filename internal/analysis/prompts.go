package analysis

const symptomInstruction = `Analyze these symptoms and provide response in VALID JSON format only:
{
    "possible_conditions": [],
    "recommended_actions": [],
    "emergency_signs": []
}
Do not include any markdown formatting.

Symptoms: `

const medicationInstruction = `Analyze these medications and provide response in VALID JSON format:
{
    "interactions": [],
    "side_effects": [],
    "guidelines": []
}
No markdown, only pure JSON.

Medications: `

const reportInstruction = "Analyze this medical report and highlight key findings:\n"

const documentInstruction = `Summarize this document for a non-specialist reader and provide response in VALID JSON format only:
{
    "summary": "",
    "key_clauses": [],
    "risks": []
}
No markdown, only pure JSON.

Document:
`

// Disclaimer accompanies every analysis result.
const Disclaimer = "This AI assistant provides informational support only and does not replace professional medical advice."
