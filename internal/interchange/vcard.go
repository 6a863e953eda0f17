package interchange

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/emersion/go-vcard"

	"github.com/roach88/kindred/internal/record"
)

// vCard properties without a go-vcard constant.
const (
	fieldHobby    = "HOBBY"    // RFC 6715
	fieldInterest = "INTEREST" // RFC 6715
	fieldRelation = "X-KINDRED-RELATION"

	uidPrefix = "urn:uuid:"
)

// ExportContacts writes one vCard 4.0 per contact.
func ExportContacts(w io.Writer, contacts []*record.Contact) error {
	enc := vcard.NewEncoder(w)
	for _, c := range contacts {
		if err := enc.Encode(contactCard(c)); err != nil {
			return fmt.Errorf("encode contact %s: %w", c.ID, err)
		}
	}
	return nil
}

func contactCard(c *record.Contact) vcard.Card {
	card := vcard.Card{}
	card.SetValue(vcard.FieldUID, uidPrefix+c.ID)
	card.SetValue(vcard.FieldFormattedName, formattedName(c))
	card.SetName(&vcard.Name{GivenName: c.Name, FamilyName: c.Surname})

	setIf(card, vcard.FieldNickname, c.Nickname)
	setIf(card, vcard.FieldTelephone, c.Phone)
	setIf(card, vcard.FieldTitle, c.Occupation)
	setIf(card, vcard.FieldNote, c.Notes)
	setIf(card, fieldHobby, c.Hobbies)
	setIf(card, fieldInterest, c.Leisure)
	setIf(card, fieldRelation, c.Relation)

	if c.Gender != "" {
		card.SetGender(vcard.SexUnspecified, c.Gender)
	}
	if c.Birthday != nil {
		card.SetValue(vcard.FieldBirthday, vcardDate(*c.Birthday))
	}
	if len(c.Avatar) > 0 {
		mime := http.DetectContentType(c.Avatar)
		card.SetValue(vcard.FieldPhoto, "data:"+mime+";base64,"+base64.StdEncoding.EncodeToString(c.Avatar))
	}

	vcard.ToV4(card)
	return card
}

func formattedName(c *record.Contact) string {
	name := strings.TrimSpace(c.Name + " " + c.Surname)
	if name == "" {
		name = c.Nickname
	}
	return name
}

// vcardDate renders the RFC 6350 basic date form: YYYYMMDD or --MMDD.
func vcardDate(b record.Birthday) string {
	if b.Year == 0 {
		return fmt.Sprintf("--%02d%02d", b.Month, b.Day)
	}
	return fmt.Sprintf("%04d%02d%02d", b.Year, b.Month, b.Day)
}

func setIf(card vcard.Card, field, value string) {
	if value != "" {
		card.SetValue(field, value)
	}
}

// ImportContacts decodes every vCard in r. Cards without a UID get an
// identifier from gen. A card that cannot be decoded ends the stream;
// a card with bad fields is skipped and reported in skipped.
func ImportContacts(r io.Reader, gen record.IDGenerator) (contacts []*record.Contact, skipped []error, err error) {
	dec := vcard.NewDecoder(r)
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return contacts, skipped, nil
		}
		if err != nil {
			return contacts, skipped, fmt.Errorf("decode vcard %d: %w", len(contacts)+len(skipped)+1, err)
		}

		c, err := cardContact(card, gen)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		contacts = append(contacts, c)
	}
}

func cardContact(card vcard.Card, gen record.IDGenerator) (*record.Contact, error) {
	c := &record.Contact{
		ID:         strings.TrimPrefix(card.Value(vcard.FieldUID), uidPrefix),
		Nickname:   card.Value(vcard.FieldNickname),
		Phone:      card.Value(vcard.FieldTelephone),
		Occupation: card.Value(vcard.FieldTitle),
		Notes:      card.Value(vcard.FieldNote),
		Hobbies:    card.Value(fieldHobby),
		Leisure:    card.Value(fieldInterest),
		Relation:   card.Value(fieldRelation),
	}
	record.AssignID(c, gen)

	if n := card.Name(); n != nil {
		c.Name, c.Surname = n.GivenName, n.FamilyName
	}
	if c.Name == "" && c.Surname == "" {
		c.Name = card.Value(vcard.FieldFormattedName)
	}
	if _, identity := card.Gender(); identity != "" {
		c.Gender = identity
	}

	if v := card.Value(vcard.FieldBirthday); v != "" {
		b, err := record.ParseBirthday(v)
		if err != nil {
			return nil, fmt.Errorf("contact %s: %w", c.ID, err)
		}
		c.Birthday = &b
	}

	if v := card.Value(vcard.FieldPhoto); strings.HasPrefix(v, "data:") {
		if i := strings.Index(v, ";base64,"); i >= 0 {
			data, err := base64.StdEncoding.DecodeString(v[i+len(";base64,"):])
			if err != nil {
				return nil, fmt.Errorf("contact %s: photo: %w", c.ID, err)
			}
			c.Avatar = data
		}
	}

	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
