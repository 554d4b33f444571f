package mcpserver

// ContentModelContract describes the document model that LLM consumers
// should follow when reading or writing Folio documents.
const ContentModelContract = `# Folio Content Model Contract

Every Folio document is a JSON object. Documents are written whole with
the put_document tool; sections and blocks are addressed by their _key.

## Document

` + "```" + `json
{
  "_id": "about",
  "_type": "page",
  "title": "About",
  "slug": {"current": "about-us"},
  "content": [],
  "horizontalNav": [],
  "verticalNav": []
}
` + "```" + `

- ` + "`_id`" + ` and ` + "`_type`" + ` are required. A draft of ` + "`X`" + ` has id ` + "`drafts.X`" + `.
- Types ` + "`page`, `homePage`, `header`, `footer`" + ` carry navigable content.
- ` + "`homePage`, `header`, `footer`, `siteSettings`" + ` are singletons: they cannot be
  deleted or duplicated.

## Sections

` + "`pageSection`" + ` contains ` + "`subSection`" + `, which contains ` + "`subSubSection`" + `.

` + "```" + `json
{"_type": "pageSection", "_key": "s1", "title": "Our Team", "anchorId": "our-team",
 "hideSection": false, "content": []}
` + "```" + `

1. **title** is required.
2. **anchorId** matches ` + "`^[a-z_][a-z0-9_-]*$`" + ` and is unique within the document.
   Prefer generate_anchor_id over inventing one. Renaming a section
   regenerates its anchor and rewrites every link that pointed at the old one.
3. **_key** is stable. Never reuse a key for a different node.

## Blocks

| _type | fields |
|---|---|
| richText | body (portable text blocks) |
| image | url, alt, caption, preset (thumbnail, card, hero) |
| quote | text, attribution |
| cta | label, linkType, href, internalLink {_ref}, pageSectionId |
| gallery | images (image objects) |
| embed | url (https only), title |
| card | title, content |
| gridLayout | columns, items |
| twoColumnLayout | left, right |

Navigation arrays hold ` + "`navLink`" + ` nodes with the same link fields as ` + "`cta`" + `.

## Links to a section

` + "```" + `json
{"_type": "cta", "_key": "c1", "label": "Meet the team", "linkType": "internal",
 "internalLink": {"_ref": "about"}, "pageSectionId": "our-team"}
` + "```" + `

` + "`internalLink._ref`" + ` names the target document (draft or published id) and
` + "`pageSectionId`" + ` the anchorId of the target section. Use
find_anchor_references before removing a section.
`
