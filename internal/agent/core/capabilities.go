package core

// QueryGrammarDoc describes the corpus query grammar. It is embedded into the
// composition prompt so the model writes expressions the index understands.
func QueryGrammarDoc() string {
	return booleanSyntax() + "\n\n" + phraseSyntax() + "\n\n" + fieldSyntax() + "\n\n" + grammarExamples()
}

func booleanSyntax() string {
	return `Boolean operators:
- AND: term1 AND term2 (both required)
- OR: term1 OR term2 (either term)
- Multiple words default to OR; AND takes precedence over OR
- NOT term excludes a term
- Required (+): +term must appear; Excluded (-): -term must not appear
- Example: +שבת מלאכה -חול is equivalent to שבת AND NOT חול with מלאכה optional
- Group sub-expressions with parentheses: שבת AND (מלאכה OR עבודה)`
}

func phraseSyntax() string {
	return `Phrases and wildcards:
- Exact phrase: "exact phrase" (single or double quotes)
- Proximity: "term1 term2"~N, the terms in any order with at most N other words between them
- Phrase prefix: "start of phrase"*
- ? matches one character, * any number of characters: ירושל?ם מקדש*
- A bare * matches every passage`
}

func fieldSyntax() string {
	return `Fields and scoring:
- Searchable fields: text, title, reference, topics
- Field-scoped match: title:בראשית
- Set match: field IN [value1 value2] is a shorter OR over one field
- Boost: term^2.0 (positive numbers only)`
}

func grammarExamples() string {
	return `Query examples:
1. Basic: שבת AND מלאכה
2. Field-specific: title:ברכות AND text:תפילה
3. Proximity: "ויאמר משה"~2
4. Complex: +title:"בבא מציעא"^2.0 +(אבדה OR מציאה) -גזל
5. Set: topics IN [שבת יום_טוב] AND הדלקה`
}
