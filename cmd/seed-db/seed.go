package main

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/user"
)

// seedUser is an account plus the plaintext API key issued to it.
type seedUser struct {
	user.User
	APIKey string
}

type seedData struct {
	Products []product.Product
	Users    []seedUser
}

// openSeed opens path, transparently decompressing .gz files.
func openSeed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := pgzip.NewReader(bufio.NewReader(f))
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "open gzip stream")
	}
	return struct {
		io.Reader
		io.Closer
	}{zr, closeBoth{zr, f}}, nil
}

type closeBoth [2]io.Closer

func (c closeBoth) Close() error {
	err := c[0].Close()
	if ferr := c[1].Close(); err == nil {
		err = ferr
	}
	return err
}

// decodeSeed reads {"products":[...],"users":[...]}.
func decodeSeed(r io.Reader) (*seedData, error) {
	var out seedData
	d := jx.Decode(r, 64*1024)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return errors.Wrapf(err, "product %d", len(out.Products))
				}
				out.Products = append(out.Products, p)
				return nil
			})
		case "users":
			return d.Arr(func(d *jx.Decoder) error {
				u, err := decodeUser(d)
				if err != nil {
					return errors.Wrapf(err, "user %d", len(out.Users))
				}
				out.Users = append(out.Users, u)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}
	return &out, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "sku":
			p.SKU, err = d.Str()
		case "title":
			p.Title, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "imageUrl":
			p.ImageURL, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return p, err
	}
	if p.SKU == "" || p.Title == "" {
		return p, errors.New("sku and title are required")
	}
	if !p.Price.IsPositive() {
		return p, errors.Errorf("price of %s must be positive", p.SKU)
	}
	return p, nil
}

func decodeUser(d *jx.Decoder) (seedUser, error) {
	var u seedUser
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			u.ID, err = d.Str()
		case "username":
			u.Username, err = d.Str()
		case "email":
			u.Email, err = d.Str()
		case "name":
			u.Name, err = d.Str()
		case "apiKey":
			u.APIKey, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return u, err
	}
	if u.ID == "" || u.Username == "" {
		return u, errors.New("id and username are required")
	}
	return u, nil
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}
