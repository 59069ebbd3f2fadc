// Package prompts builds the prompt text sent to the generation endpoint.
package prompts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLevel is returned for a C4 level outside 1..3.
var ErrInvalidLevel = errors.New("invalid c4 level: use 1 (System Context), 2 (Container) or 3 (Component)")

// C4Level is a C4 model abstraction level. The set is closed: every level
// has exactly one template builder in levelTemplates.
type C4Level int

const (
	SystemContext C4Level = iota + 1
	Container
	Component
)

type levelTemplate struct {
	name    string
	keyword string
	sample  func() string
}

var levelTemplates = map[C4Level]levelTemplate{
	SystemContext: {name: "System Context", keyword: "C4Context", sample: systemContextSample},
	Container:     {name: "Container", keyword: "C4Container", sample: containerSample},
	Component:     {name: "Component", keyword: "C4Component", sample: componentSample},
}

// C4Levels returns every level in order.
func C4Levels() []C4Level {
	return []C4Level{SystemContext, Container, Component}
}

// ParseC4Level converts the numeric level used by callers.
func ParseC4Level(n int) (C4Level, error) {
	l := C4Level(n)
	if _, ok := levelTemplates[l]; !ok {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidLevel, n)
	}
	return l, nil
}

func (l C4Level) String() string {
	if t, ok := levelTemplates[l]; ok {
		return t.name
	}
	return fmt.Sprintf("C4Level(%d)", int(l))
}

// PromptKey labels ledger rows produced for this level.
func (l C4Level) PromptKey() string {
	return "diagram.c4." + strings.ReplaceAll(strings.ToLower(l.String()), " ", "_")
}

// C4Prompt asks the model to convert a MermaidJS sequence diagram into a C4
// diagram at level and to answer with {"diagram", "explanation"} JSON.
func C4Prompt(level C4Level, sequenceDiagram string) (string, error) {
	t, ok := levelTemplates[level]
	if !ok {
		return "", fmt.Errorf("%w: got %d", ErrInvalidLevel, int(level))
	}

	var b strings.Builder
	b.WriteString(c4Instructions(t.name))
	fmt.Fprintf(&b, "%s sample\n```Mermaidjs\n%s\n```\n\n", t.name, t.sample())
	fmt.Fprintf(&b, "## Input Sequence Diagram:\n%s\n\n", CleanText(sequenceDiagram))
	b.WriteString("**Return the response strictly in JSON format with two fields:**\n")
	fmt.Fprintf(&b, "- diagram: the MermaidJS %s diagram as a string, starting with %s.\n", t.name, t.keyword)
	b.WriteString("- explanation: a short description of the design choices and mapping.\n\n")
	b.WriteString("```json\n{\n  \"diagram\": \"...\",\n  \"explanation\": \"...\"\n}\n```\n")
	b.WriteString("Do not include any additional text or commentary outside the JSON.\n")
	return b.String(), nil
}

func c4Instructions(levelName string) string {
	return fmt.Sprintf(`You are an expert software architect specializing in system design and the C4 model.

Your task is to convert the provided MermaidJS sequence diagram into a **MermaidJS C4 %s diagram**.

## MermaidJS C4 Syntax Rules
You MUST use the MermaidJS C4 commands shown in the sample below. Do NOT use any other syntax.

`, levelName)
}

func systemContextSample() string {
	return `C4Context
  title System Context diagram for Internet Banking System
  Enterprise_Boundary(b0, "BankBoundary0") {
    Person(customerA, "Banking Customer A", "A customer of the bank, with personal bank accounts.")
    System(SystemAA, "Internet Banking System", "Allows customers to view information about their bank accounts, and make payments.")
    System_Ext(SystemC, "E-mail system", "The internal Microsoft Exchange e-mail system.")
    SystemDb_Ext(SystemE, "Mainframe Banking System", "Stores all of the core banking information.")
  }
  BiRel(customerA, SystemAA, "Uses")
  BiRel(SystemAA, SystemE, "Uses")
  Rel(SystemAA, SystemC, "Sends e-mails", "SMTP")
  Rel(SystemC, customerA, "Sends e-mails to")
  UpdateLayoutConfig($c4ShapeInRow="3", $c4BoundaryInRow="1")`
}

func containerSample() string {
	return `C4Container
title Container diagram for Internet Banking System
Person(customer, Customer, "A customer of the bank, with personal bank accounts")
System_Ext(email_system, "E-Mail System", "The internal Microsoft Exchange system")
Container_Boundary(c1, "Internet Banking") {
    Container(spa, "Single-Page App", "JavaScript, Angular", "Provides all the Internet banking functionality to customers via their web browser")
    Container(web_app, "Web Application", "Java, Spring MVC", "Delivers the static content and the Internet banking SPA")
    ContainerDb(database, "Database", "SQL Database", "Stores user registration information, hashed auth credentials, access logs, etc.")
    Container(backend_api, "API Application", "Java, Docker Container", "Provides Internet banking functionality via API")
}
Rel(customer, web_app, "Uses", "HTTPS")
Rel(web_app, spa, "Delivers")
Rel(spa, backend_api, "Uses", "async, JSON/HTTPS")
Rel_Back(database, backend_api, "Reads from and writes to", "sync, JDBC")
Rel(backend_api, email_system, "Sends e-mails using", "sync, SMTP")`
}

func componentSample() string {
	return `C4Component
title Component diagram for Internet Banking System - API Application
Container(spa, "Single Page Application", "javascript and angular", "Provides all the internet banking functionality to customers via their web browser.")
ContainerDb(db, "Database", "Relational Database Schema", "Stores user registration information, hashed authentication credentials, access logs, etc.")
System_Ext(mbs, "Mainframe Banking System", "Stores all of the core banking information about customers, accounts, transactions, etc.")
Container_Boundary(api, "API Application") {
    Component(sign, "Sign In Controller", "MVC Rest Controller", "Allows users to sign in to the internet banking system")
    Component(security, "Security Component", "Spring Bean", "Provides functionality related to signing in, changing passwords, etc.")
    Component(mbsfacade, "Mainframe Banking System Facade", "Spring Bean", "A facade onto the mainframe banking system.")
    Rel(sign, security, "Uses")
    Rel(security, db, "Read & write to", "JDBC")
    Rel(mbsfacade, mbs, "Uses", "XML/HTTPS")
}
Rel_Back(spa, sign, "Uses", "JSON/HTTPS")`
}
