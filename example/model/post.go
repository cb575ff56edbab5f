package model

//go:generate go tool ormcoll -source=$GOFILE -package=query -import=github.com/mickamy/ormcoll/example/model -destination=../query/post_coll_gen.go

type Post struct {
	ID     int
	UserID int
	Title  string
	Body   string
	Labels []string `coll:"bag,id:id"`
	Pages  []string `coll:"list,index:page_no,element:content,base:1"`
}
