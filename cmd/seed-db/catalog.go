package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

type book struct {
	ID     int64
	Title  string
	Author string
	Price  decimal.Decimal
}

type zipCode struct {
	ZipCode string
	City    string
}

type catalog struct {
	Books    []book
	ZipCodes []zipCode
}

func parseCatalog(data []byte) (catalog, error) {
	var c catalog
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				b, err := decodeBook(d)
				if err != nil {
					return err
				}
				c.Books = append(c.Books, b)
				return nil
			})
		case "zipCodes":
			return d.Arr(func(d *jx.Decoder) error {
				var z zipCode
				if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					var err error
					switch string(key) {
					case "zipCode":
						z.ZipCode, err = d.Str()
					case "city":
						z.City, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				if z.ZipCode == "" || z.City == "" {
					return errors.New("zip code entry needs zipCode and city")
				}
				c.ZipCodes = append(c.ZipCodes, z)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return catalog{}, err
	}
	return c, nil
}

func decodeBook(d *jx.Decoder) (book, error) {
	var b book
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			b.ID, err = d.Int64()
		case "title":
			b.Title, err = d.Str()
		case "author":
			b.Author, err = d.Str()
		case "price":
			var s string
			if s, err = d.Str(); err == nil {
				b.Price, err = decimal.NewFromString(s)
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return book{}, err
	}
	if b.ID <= 0 || b.Title == "" {
		return book{}, errors.Errorf("book %d needs a positive id and a title", b.ID)
	}
	return b, nil
}
