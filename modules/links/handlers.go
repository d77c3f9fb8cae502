package links

import (
	"context"
	"strconv"
	"strings"

	"linklog/pkg/linklog"
)

// matchDirective matches only the addressing grammar; range checks
// happen at handle time and an out-of-range address stays silent.
func (m *Module) matchDirective(message *linklog.Message) bool {
	_, matched := linklog.ParseDirective(m.cfg.LinkPrefix, message.Text)

	return matched
}

func (m *Module) handleDirective(ctx context.Context, message *linklog.Message) error {
	directive, matched := linklog.ParseDirective(m.cfg.LinkPrefix, message.Text)
	if !matched {
		return nil
	}

	entry, found := m.log.Get(directive.Entry)
	if !found {
		return nil
	}

	mutated := false
	position := directive.Comment
	count := len(entry.Comments)

	switch directive.Kind {
	case linklog.DirectiveDelete:
		if position >= 1 && position <= count {
			entry.Comments = append(entry.Comments[:position-1], entry.Comments[position:]...)
			mutated = true
		}
	case linklog.DirectiveAuthor:
		switch {
		case position >= 1 && position <= count:
			entry.Comments[position-1].Nick = directive.Value
			mutated = true
		case position == count+1:
			entry.Comments = append(entry.Comments, linklog.Comment{
				Nick:      directive.Value,
				CreatedAt: m.clock(),
			})
			mutated = true
		}
	case linklog.DirectiveUpsert:
		switch {
		case position >= 1 && position <= count:
			entry.Comments[position-1] = linklog.Comment{
				Nick:      message.Nick,
				Text:      directive.Value,
				CreatedAt: m.clock(),
			}
			mutated = true
		case position == count+1:
			entry.Comments = append(entry.Comments, linklog.Comment{
				Nick:      message.Nick,
				Text:      directive.Value,
				CreatedAt: m.clock(),
			})
			mutated = true
		}
	}

	if !mutated {
		return nil
	}
	if err := m.log.Replace(directive.Entry, entry); err != nil {
		return err
	}
	m.sync.OnUpdate(entry, entry.Link)

	return nil
}

func (m *Module) handleView(ctx context.Context, message *linklog.Message) error {
	_, args := splitCommand(message.Text)

	entries := m.log.All()
	offset, query := linklog.ParseViewArgs(args, len(entries), m.cfg.WindowSize)
	window := linklog.FilterWindow(entries, offset, m.cfg.WindowSize, query)

	m.deliver(ctx, message, renderWindow(window, offset, len(entries), m.cfg.WindowSize, query))

	return nil
}

func (m *Module) handleTags(ctx context.Context, message *linklog.Message) error {
	_, args := splitCommand(message.Text)
	subcommand, rest := splitCommand(args)

	if strings.EqualFold(subcommand, "set") {
		keywords := linklog.SplitKeywords(rest)
		m.setKeywords(keywords)
		m.deliver(ctx, message, renderKeywords(keywords))
		return nil
	}

	m.deliver(ctx, message, renderKeywords(m.Keywords()))

	return nil
}

func (m *Module) handleDelete(ctx context.Context, message *linklog.Message) error {
	_, args := splitCommand(message.Text)
	displayIndex, ok := parseDisplayIndex(args)
	if !ok {
		return nil
	}

	entry, found := m.log.Get(displayIndex)
	if !found {
		return nil
	}
	if err := m.log.Remove(displayIndex); err != nil {
		return err
	}
	m.sync.OnDelete(entry)
	m.deliver(ctx, message, "removed "+strconv.Itoa(displayIndex)+". "+entry.Title)

	return nil
}

func (m *Module) handleEdit(ctx context.Context, message *linklog.Message) error {
	_, args := splitCommand(message.Text)
	indexToken, rest := splitCommand(args)
	displayIndex, ok := parseDisplayIndex(indexToken)
	if !ok {
		return nil
	}
	newURL, newTitle := splitCommand(rest)
	if !isHTTPURL(newURL) {
		return nil
	}

	entry, found := m.log.Get(displayIndex)
	if !found {
		return nil
	}
	previousURL := entry.Link
	entry.Link = newURL
	if newTitle != "" {
		entry.Title = newTitle
	}
	if err := m.log.Replace(displayIndex, entry); err != nil {
		return err
	}
	m.sync.OnUpdate(entry, previousURL)
	m.deliver(ctx, message, "updated "+strconv.Itoa(displayIndex)+". "+entry.Title)

	return nil
}

// matchURL matches any line containing a recognizable http(s) URL token.
func (m *Module) matchURL(message *linklog.Message) bool {
	link, _, _ := extractURL(message.Text)

	return link != ""
}

func (m *Module) handleURL(ctx context.Context, message *linklog.Message) error {
	link, explicitTitle, explicitTags := extractURL(message.Text)
	if link == "" {
		return nil
	}

	entryTitle := explicitTitle
	if entryTitle == "" && m.titles != nil {
		resolved, err := m.titles.Title(ctx, link)
		if err != nil {
			m.logger.Debug("title resolution failed", "url", link, "error", err)
		} else {
			entryTitle = resolved
		}
	}
	if entryTitle == "" {
		entryTitle = linklog.NoTitle
	}

	entry := linklog.Entry{
		Link:      link,
		Title:     entryTitle,
		Nick:      message.Nick,
		Login:     message.Login,
		Channel:   message.Channel,
		CreatedAt: m.clock(),
	}
	for _, tag := range explicitTags {
		entry.AddTag(tag)
	}
	linklog.MatchKeywords(entry.Title, &entry, m.Keywords())

	displayIndex := m.log.Append(entry)
	m.sync.OnCreate(entry)
	m.deliver(ctx, message, "logged "+strconv.Itoa(displayIndex)+". "+entry.Title)

	return nil
}

// extractURL finds the first http(s) URL token in text. Remaining tokens
// become the explicit title, except #-prefixed tokens, which become
// explicit tags.
func extractURL(text string) (link string, title string, tags []string) {
	var titleWords []string
	for _, token := range strings.Fields(text) {
		switch {
		case link == "" && isHTTPURL(token):
			link = token
		case link != "" && len(token) > 1 && strings.HasPrefix(token, "#"):
			tags = append(tags, token[1:])
		case link != "":
			titleWords = append(titleWords, token)
		}
	}

	return link, strings.Join(titleWords, " "), tags
}

func isHTTPURL(token string) bool {
	return strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://")
}

func parseDisplayIndex(token string) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil || value < 1 {
		return 0, false
	}

	return value, true
}
